package core

import "testing"

func TestGoalCurrentAmount(t *testing.T) {
	goal := SavingGoal{
		ID:        "g1",
		Name:      "Emergency Fund",
		Target:    Money{Cents: 1000000},
		CreatedAt: mustDate(t, "2025-01-01"),
		History: []GoalEntry{
			{Date: mustDate(t, "2025-03-10"), Amount: Money{Cents: 200000}},
			{Date: mustDate(t, "2025-06-20"), Amount: Money{Cents: 500000}},
			{Date: mustDate(t, "2025-08-05"), Amount: Money{Cents: 750000}},
		},
	}

	cases := []struct {
		month string
		cents int64
	}{
		{"2025-02", 0},      // before any entry
		{"2025-03", 200000}, // entry within the month
		{"2025-05", 200000}, // latest entry strictly before the month
		{"2025-08", 750000},
		{"2025-12", 750000},
	}
	for _, tc := range cases {
		if got := goal.CurrentAmount(mustMonth(t, tc.month)); got.Cents != tc.cents {
			t.Fatalf("%s: expected %d, got %d", tc.month, tc.cents, got.Cents)
		}
	}
}

func TestGoalCurrentAmountTies(t *testing.T) {
	goal := SavingGoal{
		History: []GoalEntry{
			{Date: mustDate(t, "2025-08-05"), Amount: Money{Cents: 100}},
			{Date: mustDate(t, "2025-08-05"), Amount: Money{Cents: 300}},
		},
	}
	if got := goal.CurrentAmount(mustMonth(t, "2025-08")); got.Cents != 300 {
		t.Fatalf("tie must resolve to the later entry, got %d", got.Cents)
	}
}

func TestGoalProgressAndRemaining(t *testing.T) {
	goal := SavingGoal{
		Target: Money{Cents: 1000000},
		History: []GoalEntry{
			{Date: mustDate(t, "2025-08-01"), Amount: Money{Cents: 750000}},
		},
	}
	aug := mustMonth(t, "2025-08")
	if got := goal.Progress(aug); got != 75 {
		t.Fatalf("progress: %v", got)
	}
	if got := goal.Remaining(aug); got.Cents != 250000 {
		t.Fatalf("remaining: %d", got.Cents)
	}

	zero := SavingGoal{}
	if got := zero.Progress(aug); got != 0 {
		t.Fatalf("zero target progress: %v", got)
	}
}

func TestGoalValidateHistoryOrder(t *testing.T) {
	goal := SavingGoal{
		Name:      "Car",
		Target:    Money{Cents: 100},
		CreatedAt: mustDate(t, "2025-01-01"),
		History: []GoalEntry{
			{Date: mustDate(t, "2025-03-01"), Amount: Money{Cents: 10}},
			{Date: mustDate(t, "2025-02-01"), Amount: Money{Cents: 20}},
		},
	}
	if err := goal.Validate(); err == nil {
		t.Fatalf("expected error for out-of-order history")
	}
}

func TestGoalCompleted(t *testing.T) {
	done := mustDate(t, "2025-08-01")
	if (SavingGoal{CompletedAt: &done}).Completed() != true {
		t.Fatalf("expected completed")
	}
	if (SavingGoal{}).Completed() {
		t.Fatalf("expected not completed")
	}
}
