package utils

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
// Value 表示取值（如召回源名），Source 表示打标阶段（recall / rank / rerank / fallback）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// 常用 Label key
const (
	LabelRecallSource = "recall_source" // 召回源，多个召回源命中时以 '|' 累积
	LabelStrategy     = "strategy"      // 推荐策略
	LabelFallback     = "fallback"      // 兜底原因
)

// NewLabel 构造 Label
func NewLabel(value, source string) Label {
	return Label{Value: value, Source: source}
}

// MergeLabel 用于合并同名 Label，遵循“保留历史、可追踪”的默认策略。
// - Value: 以 '|' 累积，重复值不会重复追加
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" || existing == incoming {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "" || incoming.Source == existing.Source:
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
