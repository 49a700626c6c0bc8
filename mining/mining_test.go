package mining

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/rushteam/shoprec/core"
)

func scenarioBaskets() []core.Basket {
	return []core.Basket{{"A", "B"}, {"A", "B"}, {"A", "C"}}
}

func TestTransactionTable(t *testing.T) {
	table := NewTransactionTable([]core.Basket{{"B", "A", "B"}, {"C"}, {}})
	if got := table.Items; len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Fatalf("Items = %v", got)
	}
	if table.Len() != 3 {
		t.Fatalf("Len = %d", table.Len())
	}
	if got := table.Support("A", "B"); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("Support(A,B) = %v", got)
	}
	if got := table.Support("Z"); got != 0 {
		t.Errorf("Support(unknown) = %v", got)
	}
}

func TestFPGrowthScenario(t *testing.T) {
	itemsets, err := FPGrowth(NewTransactionTable(scenarioBaskets()), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		key     []string
		support float64
	}{
		{[]string{"A"}, 1},
		{[]string{"B"}, 2.0 / 3},
		{[]string{"A", "B"}, 2.0 / 3},
	}
	if len(itemsets) != len(want) {
		t.Fatalf("itemsets = %v", itemsets)
	}
	for i, w := range want {
		if itemsKey(itemsets[i].Items) != itemsKey(w.key) || math.Abs(itemsets[i].Support-w.support) > 1e-12 {
			t.Errorf("itemsets[%d] = %v, want %v", i, itemsets[i], w)
		}
	}
}

func TestDeriveRulesScenario(t *testing.T) {
	rules, err := Mine(scenarioBaskets(), 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %+v", rules)
	}
	// B→A: 2/3 / 2/3 = 1；A→B: 2/3 / 1
	if rules[0].Antecedent[0] != "B" || rules[0].Consequent[0] != "A" || math.Abs(rules[0].Confidence-1) > 1e-12 {
		t.Errorf("rules[0] = %+v", rules[0])
	}
	if rules[1].Antecedent[0] != "A" || rules[1].Consequent[0] != "B" || math.Abs(rules[1].Confidence-2.0/3) > 1e-12 {
		t.Errorf("rules[1] = %+v", rules[1])
	}
	for _, r := range rules {
		if math.Abs(r.Lift-1) > 1e-12 {
			t.Errorf("lift = %v, want 1", r.Lift)
		}
		if !r.HasAntecedent(r.Antecedent[0]) {
			t.Error("HasAntecedent")
		}
	}
}

func TestMineEdgeCases(t *testing.T) {
	rules, err := Mine(nil, 0.05, 0.2)
	if err != nil || len(rules) != 0 {
		t.Fatalf("empty baskets: %v, %v", rules, err)
	}
	if _, err := Mine(scenarioBaskets(), 0, 0.2); !core.IsInvalidInput(err) {
		t.Errorf("min support 0: %v", err)
	}
	if _, err := Mine(scenarioBaskets(), 0.5, 1.5); !core.IsInvalidInput(err) {
		t.Errorf("min confidence 1.5: %v", err)
	}
	// 没有共现 → 没有规则
	rules, err = Mine([]core.Basket{{"A"}, {"B"}}, 0.5, 0.2)
	if err != nil || len(rules) != 0 {
		t.Fatalf("no co-occurrence: %v, %v", rules, err)
	}
}

// 与暴力枚举比较
func TestFPGrowthMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vocab := []string{"a", "b", "c", "d", "e", "f"}
	var baskets []core.Basket
	for i := 0; i < 40; i++ {
		var b core.Basket
		for _, id := range vocab {
			if rng.Float64() < 0.45 {
				b = append(b, id)
			}
		}
		baskets = append(baskets, b)
	}
	table := NewTransactionTable(baskets)
	for _, minSupport := range []float64{0.05, 0.1, 0.2, 0.35} {
		got, err := FPGrowth(table, minSupport)
		if err != nil {
			t.Fatal(err)
		}
		gotSet := make(map[string]float64, len(got))
		for _, s := range got {
			gotSet[s.Key()] = s.Support
		}

		want := make(map[string]float64)
		items := table.Items
		for mask := 1; mask < 1<<len(items); mask++ {
			var set []string
			for i, id := range items {
				if mask&(1<<i) != 0 {
					set = append(set, id)
				}
			}
			if s := table.Support(set...); s >= minSupport-1e-12 {
				sort.Strings(set)
				want[itemsKey(set)] = s
			}
		}
		if len(gotSet) != len(want) {
			t.Fatalf("minSupport %v: got %d itemsets, want %d", minSupport, len(gotSet), len(want))
		}
		for k, s := range want {
			if math.Abs(gotSet[k]-s) > 1e-12 {
				t.Errorf("minSupport %v: itemset %q support = %v, want %v", minSupport, k, gotSet[k], s)
			}
		}
	}
}

func TestDeriveRulesDeterministic(t *testing.T) {
	baskets := []core.Basket{{"a", "b", "c"}, {"a", "b"}, {"b", "c"}, {"a", "c"}, {"a", "b", "c"}}
	first, err := Mine(baskets, 0.2, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _ := Mine(baskets, 0.2, 0.3)
		if len(again) != len(first) {
			t.Fatal("rule count changed between runs")
		}
		for j := range again {
			if itemsKey(again[j].Antecedent) != itemsKey(first[j].Antecedent) ||
				itemsKey(again[j].Consequent) != itemsKey(first[j].Consequent) {
				t.Fatalf("rule order changed at %d", j)
			}
		}
	}
	for _, r := range first {
		if r.Confidence < 0.3 {
			t.Errorf("rule below min confidence: %+v", r)
		}
	}
}
