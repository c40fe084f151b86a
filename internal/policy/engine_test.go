package policy

import (
	"path/filepath"
	"testing"
)

func TestUnattendedBypassesEverything(t *testing.T) {
	prefs := NewPrefStore("", map[string]string{"exec": "deny"})
	eng := NewEngine(true, prefs)
	d := eng.Evaluate("exec")
	if d.Verdict != VerdictAutoApprove {
		t.Fatalf("verdict = %s (%s)", d.Verdict, d.Reason)
	}
	if d.Reason != "unattended_mode" {
		t.Fatalf("reason = %s", d.Reason)
	}
}

func TestStoredAllowAutoApproves(t *testing.T) {
	prefs := NewPrefStore("", map[string]string{"write_file": "allow"})
	d := NewEngine(false, prefs).Evaluate("write_file")
	if d.Verdict != VerdictAutoApprove || d.Reason != "preference_allow" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestStoredDenyRejects(t *testing.T) {
	prefs := NewPrefStore("", map[string]string{"exec": "deny"})
	d := NewEngine(false, prefs).Evaluate("exec")
	if d.Verdict != VerdictDeny || d.Reason != "preference_deny" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestNoPreferenceDefersToTool(t *testing.T) {
	d := NewEngine(false, NewPrefStore("", nil)).Evaluate("read_file")
	if d.Verdict != VerdictAsk || d.Reason != "tool_decides" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestConfirmPreferenceStillDefersToTool(t *testing.T) {
	prefs := NewPrefStore("", map[string]string{"exec": "confirm"})
	d := NewEngine(false, prefs).Evaluate("exec")
	if d.Verdict != VerdictAsk {
		t.Fatalf("decision = %+v", d)
	}
}

func TestRememberAllowPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	eng := NewEngine(false, NewPrefStore(path, nil))
	if err := eng.RememberAllow("exec"); err != nil {
		t.Fatalf("remember allow: %v", err)
	}

	reloaded := NewPrefStore(path, nil)
	p, ok := reloaded.Get("exec")
	if !ok || p != PrefAllow {
		t.Fatalf("pref = %v, %v", p, ok)
	}
}

func TestInvalidSeedValueIgnored(t *testing.T) {
	prefs := NewPrefStore("", map[string]string{"exec": "bogus"})
	if _, ok := prefs.Get("exec"); ok {
		t.Fatal("invalid preference value should be dropped")
	}
}
