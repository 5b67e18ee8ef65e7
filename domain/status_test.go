package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusReview, true},
		{StatusInProgress, StatusReview, true},
		{StatusReview, StatusCompleted, true},

		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusPending, false},
		{StatusInProgress, StatusCompleted, false},
		{StatusReview, StatusPending, false},
		{StatusReview, StatusInProgress, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusReview, false},
		{StatusCompleted, StatusCompleted, false},
		{Status("bogus"), StatusReview, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusReview, StatusCompleted} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false, want true", s)
		}
	}
	if ValidStatus(Status("archived")) {
		t.Error("ValidStatus(archived) = true, want false")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() {
		t.Error("completed should be terminal")
	}
	for _, s := range []Status{StatusPending, StatusInProgress, StatusReview} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRoutedToGroup(t *testing.T) {
	group := &GroupRef{ID: "g1"}

	groupTask := &Task{Mode: AssignGroup, Group: group}
	if !groupTask.RoutedToGroup("g1") {
		t.Error("group-mode task should route to its group")
	}
	if groupTask.RoutedToGroup("g2") {
		t.Error("group-mode task should not route to another group")
	}

	contextual := &Task{Mode: AssignIndividual, Group: group, Assignee: &UserRef{ID: "u1"}}
	if contextual.RoutedToGroup("g1") {
		t.Error("individual task with direct assignee should not be inherited by the group")
	}

	orphan := &Task{Mode: AssignIndividual, Group: group}
	if !orphan.RoutedToGroup("g1") {
		t.Error("task with group context and no assignee should be inherited")
	}
}
