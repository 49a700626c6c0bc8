package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 可包装底层错误（Err），支持 errors.Is / errors.As
//
// 错误分类：
//   - NOT_CONFIGURED：必需的外部依赖（Catalog、Embedder 等）未初始化，直接返回调用方，不重试
//   - DATA_SPARSE：数据稀疏（无交互/无订单/无评论），只在内部用于选择兜底策略，不会返回给调用方
//   - NUMERIC_DEGENERATE：零方差/除零，内部替换为安全默认值，不会返回给调用方
//   - BATCH_WRITE_FAILED：批量替换失败，整批回滚，旧缓存保持不变
//   - CONFLICT：同类型批任务已在运行
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NOT_CONFIGURED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "catalog", "vector"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Module + Code 比较，使 errors.Is(err, ErrBatchInProgress) 这类哨兵比较可用
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Module == "" || e.Module == t.Module)
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound          = "NOT_FOUND"          // 资源不存在
	ErrorCodeNotSupported      = "NOT_SUPPORTED"      // 操作不支持
	ErrorCodeUnavailable       = "UNAVAILABLE"        // 服务不可用
	ErrorCodeInvalidInput      = "INVALID_INPUT"      // 输入无效
	ErrorCodeInternalError     = "INTERNAL_ERROR"     // 内部错误
	ErrorCodeNotConfigured     = "NOT_CONFIGURED"     // 依赖未初始化
	ErrorCodeDataSparse        = "DATA_SPARSE"        // 数据稀疏
	ErrorCodeNumericDegenerate = "NUMERIC_DEGENERATE" // 数值退化
	ErrorCodeBatchWriteFailed  = "BATCH_WRITE_FAILED" // 批量写入失败
	ErrorCodeConflict          = "CONFLICT"           // 并发冲突
)

// 模块名称常量
const (
	ModuleStore     = "store"     // 相似度/推荐缓存
	ModuleCatalog   = "catalog"   // 商品/订单/交互数据
	ModuleVector    = "vector"    // 向量索引
	ModuleService   = "service"   // 外部模型服务
	ModuleRecall    = "recall"    // 召回
	ModuleRank      = "rank"      // 打分
	ModuleJob       = "job"       // 批任务
	ModuleEngine    = "engine"    // 编排
	ModuleMining    = "mining"    // 关联规则
	ModuleSentiment = "sentiment" // 情感分析
	ModuleConfig    = "config"    // 配置
)

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsNotConfigured 检查错误是否为 NOT_CONFIGURED（ConfigurationError）
func IsNotConfigured(err error) bool { return hasCode(err, ErrorCodeNotConfigured) }

// IsDataSparse 检查错误是否为 DATA_SPARSE
func IsDataSparse(err error) bool { return hasCode(err, ErrorCodeDataSparse) }

// IsBatchWriteFailed 检查错误是否为 BATCH_WRITE_FAILED
func IsBatchWriteFailed(err error) bool { return hasCode(err, ErrorCodeBatchWriteFailed) }

// IsConflict 检查错误是否为 CONFLICT
func IsConflict(err error) bool { return hasCode(err, ErrorCodeConflict) }

// NotConfigured 构造 ConfigurationError
func NotConfigured(module, dependency string) *DomainError {
	return NewDomainError(module, ErrorCodeNotConfigured, module+": "+dependency+" not configured")
}

// ErrDataSparse 表示实体没有可用的交互/订单/评论数据，调用方应选择兜底策略
var ErrDataSparse = NewDomainError("", ErrorCodeDataSparse, "no data for entity")
