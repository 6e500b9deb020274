package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// AnalysisModulePrefix 分析模块
	AnalysisModulePrefix = "analysis"

	// EntityResult 分析结果实体
	EntityResult = "result"

	// KeyAnalysisResult 基线分析结果缓存 (STRING, JSON)
	// 格式: app:analysis:result:{fingerprint}
	KeyAnalysisResult = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityResult + ":%s"
)
