package dto

// Submission 状态
const (
	SubmissionAccepted            = "accepted"
	SubmissionInsufficientCredits = "insufficient_credits"
	SubmissionRejected            = "rejected"
	SubmissionFailed              = "failed"
)

// ParsedSubmission 表单解析后的申请数据
type ParsedSubmission struct {
	Name               string `json:"name"`
	Role               string `json:"role"`
	Trust              string `json:"trust"`
	Email              string `json:"email"`
	Consent            bool   `json:"consent"`
	CVURL              string `json:"cv_url"`
	CVFilename         string `json:"cv_filename"`
	PersonSpecURL      string `json:"person_spec_url"`
	PersonSpecFilename string `json:"person_spec_filename"`
	PersonSpecMimeType string `json:"person_spec_mime_type"`
}

// GenerationInput 透传给生成服务的输入
type GenerationInput struct {
	Name               string
	Role               string
	Trust              string
	CVURL              string
	CVFilename         string
	PersonSpecURL      string
	PersonSpecFilename string
	PersonSpecMimeType string
}

// GenerationInput 从表单数据构造生成输入
func (s *ParsedSubmission) GenerationInput() GenerationInput {
	return GenerationInput{
		Name:               s.Name,
		Role:               s.Role,
		Trust:              s.Trust,
		CVURL:              s.CVURL,
		CVFilename:         s.CVFilename,
		PersonSpecURL:      s.PersonSpecURL,
		PersonSpecFilename: s.PersonSpecFilename,
		PersonSpecMimeType: s.PersonSpecMimeType,
	}
}

// SubmissionResult 表单受理结果
type SubmissionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TaskID  string `json:"task_id,omitempty"`
}

// UsageContext 审计记录的上下文字段
type UsageContext struct {
	Role  string
	Trust string
}
