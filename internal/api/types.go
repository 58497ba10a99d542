package api

// Workflow status values reported by the participant service.
const (
	StatusIdle          = "idle"
	StatusPending       = "pending"
	StatusRunning       = "running"
	StatusFineTuning    = "fine_tuning"
	StatusComputing     = "computing"
	StatusReady         = "ready"
	StatusError         = "error"
	StatusStarted       = "started"
	StatusNoHistory     = "no_viewing_history"
	StatusAggrWait      = "aggregator_wait"
	StatusAlreadyRun    = "already_running"
	StatusAlreadyComput = "already_computing"
)

// StatusResponse is the GET /api/status payload.
type StatusResponse struct {
	Status             string `json:"status"`
	HasViewingHistory  bool   `json:"has_viewing_history"`
	HasRecommendations bool   `json:"has_recommendations"`
	Message            string `json:"message"`
	ErrorType          string `json:"error_type,omitempty"`
	LastUpdated        string `json:"last_updated,omitempty"`
}

// Recommendation is one enriched entry from the recommendations payload.
type Recommendation struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Genres      string  `json:"genres,omitempty"` // comma-separated, may be absent
	Score       float64 `json:"raw_score"`
	Rating      string  `json:"rating,omitempty"`
	ReleaseYear int     `json:"release_year,omitempty"`
	Description string  `json:"description,omitempty"`
	CoverURL    string  `json:"cover_url,omitempty"`
}

// RecommendationsResponse is the GET /api/recommendations payload.
type RecommendationsResponse struct {
	Status    string           `json:"status"`
	Raw       []Recommendation `json:"raw_recommendations"`
	Reranked  []Recommendation `json:"reranked_recommendations"`
	UserEmail string           `json:"user_email"`
}

// SharedModelInfo is the GET /api/fl/global-v-info payload. LastModified is
// the freshness marker for the globally aggregated model.
type SharedModelInfo struct {
	Exists       bool   `json:"exists"`
	LastModified string `json:"last_modified"`
}

// TriggerResponse covers the fine-tune and recompute trigger replies.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ClickRecord is the click-history shape forwarded with fine-tune requests.
type ClickRecord struct {
	Name      string `json:"name"`
	ID        int    `json:"id"`
	ClickedAt string `json:"clicked_at"`
}

// FineTuneRequest is the POST /api/fl/run body.
type FineTuneRequest struct {
	Profile      string        `json:"profile"`
	Epsilon      float64       `json:"epsilon"`
	ClickHistory []ClickRecord `json:"click_history,omitempty"`
}

// ChoiceRequest records a card click. Column is 1 for the unprocessed list,
// 2 for the re-ranked list. Rank is the item's position in the unfiltered
// server order.
type ChoiceRequest struct {
	ID           int   `json:"id"`
	Column       int   `json:"column"`
	Rank         int   `json:"rank"`
	Page         int   `json:"page"`
	VisibleItems []int `json:"visible_items"`
}

// WatchlistRequest records a will/won't watch action.
type WatchlistRequest struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Action       string `json:"action"` // will_watch | wont_watch
	UseReranked  bool   `json:"useReranked"`
	Rank         int    `json:"rank"`
	Page         int    `json:"page"`
	VisibleItems []int  `json:"visible_items"`
}

// SettingsLog is the full settings record posted on every toggle.
type SettingsLog struct {
	ShowMoreDetails     bool `json:"showMoreDetails"`
	UseReranked         bool `json:"useReranked"`
	ShowWhyRecommended  bool `json:"showWhyRecommended"`
	EnableWatchlist     bool `json:"enableWatchlist"`
	EnableBlockItems    bool `json:"enableBlockItems"`
	ShowActivityCharts  bool `json:"showActivityCharts"`
	ShowWatchlistStatus bool `json:"showWatchlistStatus"`
}

// FeedbackRequest is the POST /api/feedback body.
type FeedbackRequest struct {
	Rating    int    `json:"rating"`
	Feedback  string `json:"feedback,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// OptOutRequest is the POST /api/opt-out body.
type OptOutRequest struct {
	Reason      string `json:"reason,omitempty"`
	UserMessage string `json:"user_message,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// UploadResponse is the POST /api/data/upload reply.
type UploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	RowCount int    `json:"row_count"`
}

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	AppName string `json:"app_name"`
}

// UserResponse is the GET /api/user payload.
type UserResponse struct {
	Email   string `json:"email"`
	AppName string `json:"app_name"`
}

// MovieDetailsResponse is the GET /api/movie/{id} payload.
type MovieDetailsResponse struct {
	Status string         `json:"status"`
	Item   Recommendation `json:"item"`
}
