package biz

// AbnormalFinding 异常指标。
type AbnormalFinding struct {
	Test        string `json:"test"`
	Value       string `json:"value"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
	Urgency     string `json:"urgency"`
}

// 异常指标状态与紧急程度取值。
const (
	StatusHigh = "High"
	StatusLow  = "Low"

	UrgencyLow      = "low"
	UrgencyModerate = "moderate"
	UrgencyHigh     = "high"
)

// AnalysisResult 报告的结构化解读。
type AnalysisResult struct {
	Summary            string            `json:"summary"`
	NormalFindings     []string          `json:"normalFindings"`
	AbnormalFindings   []AbnormalFinding `json:"abnormalFindings"`
	RedFlags           []string          `json:"redFlags"`
	NextSteps          []string          `json:"nextSteps"`
	QuestionsForDoctor []string          `json:"questionsForDoctor"`

	// degraded 标记安全默认结果，此类结果永远不写入缓存。
	degraded bool
}

// Degraded 报告该结果是否为降级产生的安全默认结果。
func (r *AnalysisResult) Degraded() bool {
	return r != nil && r.degraded
}

// ensureLists 把缺失的列表置为空列表，保证序列化为 []。
func (r *AnalysisResult) ensureLists() {
	if r.NormalFindings == nil {
		r.NormalFindings = []string{}
	}
	if r.AbnormalFindings == nil {
		r.AbnormalFindings = []AbnormalFinding{}
	}
	if r.RedFlags == nil {
		r.RedFlags = []string{}
	}
	if r.NextSteps == nil {
		r.NextSteps = []string{}
	}
	if r.QuestionsForDoctor == nil {
		r.QuestionsForDoctor = []string{}
	}
}

// SafeDefault 返回 AI 不可用时的安全默认结果，已标记为降级。
func SafeDefault() *AnalysisResult {
	return &AnalysisResult{
		Summary:          "We couldn't process this report completely. Please consult your doctor for interpretation.",
		NormalFindings:   []string{},
		AbnormalFindings: []AbnormalFinding{},
		RedFlags:         []string{},
		NextSteps: []string{
			"Consult your healthcare provider for proper interpretation of this medical report.",
		},
		QuestionsForDoctor: []string{
			"Could you explain the key findings in this report?",
		},
		degraded: true,
	}
}
