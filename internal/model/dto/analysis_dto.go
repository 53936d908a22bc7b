package dto

// AnalyzeRequest 代码分析请求
type AnalyzeRequest struct {
	Code string `json:"code" binding:"required"`
	// 用户自备的 Gemini API key，留空则使用系统默认
	APIKey string `json:"api_key,omitempty"`
}

// AnalyzeResult 分析结果信封：校验失败和上游失败同样走这个结构
type AnalyzeResult struct {
	Success    bool   `json:"success"`
	Analysis   string `json:"analysis,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code"`
	UserID     int64  `json:"user_id,omitempty"`
	Timestamp  string `json:"timestamp"`
	ModelUsed  string `json:"model_used,omitempty"`
	AnalysisID int64  `json:"analysis_id,omitempty"`
	Score      *int   `json:"score,omitempty"`
}

// StatsResponse 用户统计
type StatsResponse struct {
	TotalAnalyses    int     `json:"total_analyses"`
	AnalysesToday    int     `json:"analyses_today"`
	AverageScore     float64 `json:"average_score"`
	DailyLimit       int     `json:"daily_limit"`
	AnalysesRemained int     `json:"analyses_remaining"`
}

// HistoryItem 历史列表项
type HistoryItem struct {
	ID          int64  `json:"id"`
	CodeSnippet string `json:"code_snippet"`
	Score       *int   `json:"score,omitempty"`
	CreatedAt   string `json:"created_at"`
	ModelUsed   string `json:"model_used"`
}

// HistoryResponse 分页历史
type HistoryResponse struct {
	Items  []*HistoryItem `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// QuotaInfo 配额信息
type QuotaInfo struct {
	Role        string `json:"role"`
	DailyLimit  int    `json:"daily_limit"`
	DailyUsed   int    `json:"daily_used"`
	DailyRemain int    `json:"daily_remain"`
}
