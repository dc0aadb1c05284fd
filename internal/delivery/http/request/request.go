package request

type SubmitScrapeRequest struct {
	Username    string `json:"username"`
	Concurrency int    `json:"concurrency"`
	MaxPages    int    `json:"max_pages"`
}
