package mining

import (
	"math"
	"sort"

	"github.com/rushteam/shoprec/core"
)

// Rule 是关联规则 Antecedent → Consequent
type Rule struct {
	Antecedent []string
	Consequent []string
	Support    float64 // supp(A ∪ C)
	Confidence float64 // supp(A ∪ C) / supp(A)
	Lift       float64 // confidence / supp(C)
}

// HasAntecedent 判断前件是否包含商品
func (r Rule) HasAntecedent(productID string) bool {
	for _, id := range r.Antecedent {
		if id == productID {
			return true
		}
	}
	return false
}

// maxRuleItems 限制单个项集推导规则时的子集枚举规模
const maxRuleItems = 16

// DeriveRules 从频繁项集推导置信度 >= minConfidence 的规则。
//
// 输出按置信度、提升度、支持度降序，再按前件、后件字典序。
func DeriveRules(itemsets []Itemset, minConfidence float64) ([]Rule, error) {
	if minConfidence <= 0 || minConfidence > 1 || math.IsNaN(minConfidence) {
		return nil, core.NewDomainError(core.ModuleMining, core.ErrorCodeInvalidInput, "mining: min confidence must be in (0,1]")
	}
	support := make(map[string]float64, len(itemsets))
	for _, s := range itemsets {
		support[s.Key()] = s.Support
	}

	var rules []Rule
	for _, s := range itemsets {
		k := len(s.Items)
		if k < 2 || k > maxRuleItems {
			continue
		}
		for mask := 1; mask < (1<<k)-1; mask++ {
			var ante, cons []string
			for i, id := range s.Items {
				if mask&(1<<i) != 0 {
					ante = append(ante, id)
				} else {
					cons = append(cons, id)
				}
			}
			suppA, okA := support[itemsKey(ante)]
			suppC, okC := support[itemsKey(cons)]
			if !okA || !okC || suppA == 0 || suppC == 0 {
				continue
			}
			conf := s.Support / suppA
			if conf < minConfidence-1e-12 {
				continue
			}
			rules = append(rules, Rule{
				Antecedent: ante,
				Consequent: cons,
				Support:    s.Support,
				Confidence: conf,
				Lift:       conf / suppC,
			})
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if ka, kb := itemsKey(a.Antecedent), itemsKey(b.Antecedent); ka != kb {
			return ka < kb
		}
		return itemsKey(a.Consequent) < itemsKey(b.Consequent)
	})
	return rules, nil
}

// Mine 是 NewTransactionTable + FPGrowth + DeriveRules 的组合
func Mine(baskets []core.Basket, minSupport, minConfidence float64) ([]Rule, error) {
	itemsets, err := FPGrowth(NewTransactionTable(baskets), minSupport)
	if err != nil {
		return nil, err
	}
	return DeriveRules(itemsets, minConfidence)
}
