package core

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ProductStatusApproved 是可参与推荐的商品状态；空状态视为已上架。
const ProductStatusApproved = "APPROVED"

// Product 是商品目录中的一条记录。一个推荐周期内不可变，归 Catalog 所有。
type Product struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Brand       string     `json:"brand" yaml:"brand"`
	Category    string     `json:"category" yaml:"category"`
	Price       float64    `json:"price" yaml:"price"`
	Rating      *float64   `json:"rating,omitempty" yaml:"rating,omitempty"` // nil 表示没有评分
	Features    FeatureMap `json:"features,omitempty" yaml:"features,omitempty"`
	Description string     `json:"description" yaml:"description"`
	Status      string     `json:"status,omitempty" yaml:"status,omitempty"`
}

// HasRating 是否有评分
func (p *Product) HasRating() bool {
	return p != nil && p.Rating != nil
}

// RatingValue 返回评分，缺失时为 0
func (p *Product) RatingValue() float64 {
	if p == nil || p.Rating == nil {
		return 0
	}
	return *p.Rating
}

// Approved 是否可参与推荐
func (p *Product) Approved() bool {
	return p != nil && (p.Status == "" || strings.EqualFold(p.Status, ProductStatusApproved))
}

// ContentText 返回用于 Embedding 的文本：name + brand + description。
func (p *Product) ContentText() string {
	return p.Name + " " + p.Brand + " " + p.Description
}

// Float64 是构造 *float64 的辅助函数（评分、情感分等可选字段）。
func Float64(v float64) *float64 {
	return &v
}

// FeatureMap 是商品的自由属性表（颜色、尺寸、材质等）。
//
// 与动态类型的 blob 不同，FeatureMap：
//   - 保持插入顺序（Keys 决定遍历顺序，便于稳定输出）
//   - key 与 value 的比较均忽略大小写
//   - 重复 Set 同一个 key（忽略大小写）会覆盖原值，但保留原位置
type FeatureMap struct {
	keys   []string
	values map[string]string // lower(key) -> value
	names  map[string]string // lower(key) -> 原始 key
}

// NewFeatureMap 按给定顺序构造 FeatureMap，pairs 为 key, value, key, value...
func NewFeatureMap(pairs ...string) FeatureMap {
	var fm FeatureMap
	for i := 0; i+1 < len(pairs); i += 2 {
		fm.Set(pairs[i], pairs[i+1])
	}
	return fm
}

// Set 写入属性
func (fm *FeatureMap) Set(key, value string) {
	if fm.values == nil {
		fm.values = make(map[string]string)
		fm.names = make(map[string]string)
	}
	lk := strings.ToLower(key)
	if _, ok := fm.values[lk]; !ok {
		fm.keys = append(fm.keys, lk)
		fm.names[lk] = key
	}
	fm.values[lk] = value
}

// Get 读取属性（key 忽略大小写）
func (fm FeatureMap) Get(key string) (string, bool) {
	if fm.values == nil {
		return "", false
	}
	v, ok := fm.values[strings.ToLower(key)]
	return v, ok
}

// Len 属性个数
func (fm FeatureMap) Len() int {
	return len(fm.keys)
}

// IsZero 供 yaml omitempty 判断
func (fm FeatureMap) IsZero() bool {
	return fm.Len() == 0
}

// Keys 返回原始 key（插入顺序）
func (fm FeatureMap) Keys() []string {
	out := make([]string, 0, len(fm.keys))
	for _, lk := range fm.keys {
		out = append(out, fm.names[lk])
	}
	return out
}

// Matches 判断 key 对应的值是否与 value 相等（忽略大小写）
func (fm FeatureMap) Matches(key, value string) bool {
	v, ok := fm.Get(key)
	return ok && strings.EqualFold(v, value)
}

// Equal 两个 FeatureMap 的 key 集合相同且每个值忽略大小写相等（与顺序无关）
func (fm FeatureMap) Equal(other FeatureMap) bool {
	if fm.Len() != other.Len() {
		return false
	}
	for _, lk := range fm.keys {
		if !other.Matches(lk, fm.values[lk]) {
			return false
		}
	}
	return true
}

// Jaccard 返回匹配属性数 / key 并集大小，任一为空时为 0。
func (fm FeatureMap) Jaccard(other FeatureMap) float64 {
	if fm.Len() == 0 || other.Len() == 0 {
		return 0
	}
	union := fm.Len()
	matching := 0
	for _, lk := range other.keys {
		if _, ok := fm.values[lk]; !ok {
			union++
			continue
		}
		if strings.EqualFold(fm.values[lk], other.values[lk]) {
			matching++
		}
	}
	return float64(matching) / float64(union)
}

// Map 转为普通 map（原始 key），用于 CEL 等动态场景
func (fm FeatureMap) Map() map[string]string {
	out := make(map[string]string, len(fm.keys))
	for _, lk := range fm.keys {
		out[fm.names[lk]] = fm.values[lk]
	}
	return out
}

// UnmarshalYAML 按文档顺序读取 mapping 节点，保证 fixture 的属性顺序
func (fm *FeatureMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &yaml.TypeError{Errors: []string{"features must be a mapping"}}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		fm.Set(node.Content[i].Value, node.Content[i+1].Value)
	}
	return nil
}

// MarshalYAML 按插入顺序输出
func (fm FeatureMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, lk := range fm.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: fm.names[lk]},
			&yaml.Node{Kind: yaml.ScalarNode, Value: fm.values[lk]},
		)
	}
	return node, nil
}

// MarshalJSON 输出为 JSON 对象
func (fm FeatureMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(fm.Map())
}

// UnmarshalJSON 从 JSON 对象读取；JSON 对象不保证顺序，key 按字典序写入以保证结果稳定。
// 非字符串值按 JSON 字面量保存（数字 42 -> "42"）。
func (fm *FeatureMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(raw[k], &s); err != nil {
			s = strings.TrimSpace(string(raw[k]))
		}
		fm.Set(k, s)
	}
	return nil
}
