// Package biz 提供医疗报告解析服务的业务逻辑层。
//
// 一次请求按顺序经过以下组件：
//   - HashText: 计算文本内容哈希，作为缓存键
//   - FindSampleBlock: 在原始文本中定位一个化验条目样本块
//   - PatternSynthesizer: 由 LLM 根据样本块生成提取模式（按样本哈希缓存）
//   - ApplyPattern / KeywordFilter: 用模式或关键字行过滤精简全文
//   - SafetyClassifier: 可选的内容安全检查，失败时放行
//   - Analyzer: 由 LLM 生成结构化解读
//   - ResultCache: 以 pdf:/pattern: 命名空间缓存结果与模式
//   - ReportService: 编排以上步骤，实现降级链与安全默认结果
package biz
