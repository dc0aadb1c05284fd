package response

import "github.com/user/boxd-office/internal/domain"

type SubmitScrapeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type FilmsResponse struct {
	Username string              `json:"username"`
	Count    int                 `json:"count"`
	Films    []domain.FilmRecord `json:"films"`
}
