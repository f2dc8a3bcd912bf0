package api

import "testing"

func TestParseDirective(t *testing.T) {
	tests := []struct {
		text string
		want Directive
	}{
		{"Keep panel dialogue terse. Auto-apply results.", DirectiveDirect},
		{"generate scenes without review", DirectiveDirect},
		{"skip review for chapter summaries", DirectiveDirect},
		{"run unattended overnight", DirectiveDirect},
		{"I want to review every character before it lands", DirectiveReview},
		{"needs my approval first", DirectiveReview},
		{"confirm before applying", DirectiveReview},
		{"prefer moody lighting and rain", DirectiveNone},
		{"", DirectiveNone},
	}
	for _, tc := range tests {
		if got := ParseDirective(tc.text); got != tc.want {
			t.Errorf("ParseDirective(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestContentKindMatches(t *testing.T) {
	if !ContentKindAll.Matches(TaskSceneList) {
		t.Error("wildcard must match every task")
	}
	if !ContentKind("scene_list").Matches(TaskSceneList) {
		t.Error("exact content kind must match its task")
	}
	if ContentKind("panel_list").Matches(TaskSceneList) {
		t.Error("mismatched content kind must not match")
	}
}

func TestParentKind(t *testing.T) {
	tests := []struct {
		kind   EntityKind
		parent EntityKind
		has    bool
	}{
		{KindProject, "", false},
		{KindChapter, KindProject, true},
		{KindScene, KindChapter, true},
		{KindPanel, KindScene, true},
		{KindCharacter, KindProject, true},
		{KindLocation, KindProject, true},
	}
	for _, tc := range tests {
		parent, has := ParentKind(tc.kind)
		if has != tc.has || parent != tc.parent {
			t.Errorf("ParentKind(%s) = (%q, %v), want (%q, %v)", tc.kind, parent, has, tc.parent, tc.has)
		}
	}
}

func TestScopeDepthOrdering(t *testing.T) {
	if !(ScopeDepth(KindPanel) > ScopeDepth(KindScene) &&
		ScopeDepth(KindScene) > ScopeDepth(KindChapter) &&
		ScopeDepth(KindChapter) > ScopeDepth(KindProject)) {
		t.Error("scope depth must order panel > scene > chapter > project")
	}
}
