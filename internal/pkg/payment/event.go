package payment

// Event 与 SDK 解耦的 webhook 事件
type Event struct {
	ID     string
	Type   string
	Object map[string]interface{}
}

// Str 读取对象上的字符串字段，缺失或类型不符时返回空串
func (e *Event) Str(key string) string {
	if e.Object == nil {
		return ""
	}
	s, _ := e.Object[key].(string)
	return s
}

// Metadata 读取对象 metadata 中的字段
func (e *Event) Metadata(key string) string {
	if e.Object == nil {
		return ""
	}
	md, ok := e.Object["metadata"].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := md[key].(string)
	return s
}

// CustomerEmail 依次尝试 customer_email、customer_details.email、metadata.email
func (e *Event) CustomerEmail() string {
	if email := e.Str("customer_email"); email != "" {
		return email
	}
	if details, ok := e.Object["customer_details"].(map[string]interface{}); ok {
		if email, _ := details["email"].(string); email != "" {
			return email
		}
	}
	return e.Metadata("email")
}
