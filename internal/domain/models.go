package domain

import "time"

// ListItem is one entry of a user's films listing, in listing order.
type ListItem struct {
	Slug   string   `json:"film_slug"`
	Title  string   `json:"title"`
	Rating *float64 `json:"rating"` // 0.5 steps, nil when the user did not rate
	Liked  bool     `json:"liked"`
}

// DetailRecord holds everything scraped from a film's own pages.
// Any field may be absent; partial records are normal.
type DetailRecord struct {
	Slug           string   `json:"film_slug"`
	Year           *int     `json:"year"`
	RuntimeMinutes *int     `json:"runtime"`
	Genres         []string `json:"genres"`
	Themes         []string `json:"themes"`
	Directors      []string `json:"directors"`
	Cast           []string `json:"cast"`
	Studios        []string `json:"studios"`
	Countries      []string `json:"countries"`
	Language       *string  `json:"language"`
	AvgRating      *float64 `json:"avg_rating"`
	NumWatched     *int     `json:"num_watched"`
	NumLiked       *int     `json:"num_liked"`

	// Partial is set when the film page loaded but a rating or stats
	// fragment did not. Partial records are never cached.
	Partial bool `json:"-"`
}

// EmptyDetail returns a record carrying only the slug, used when a detail
// fetch failed outright.
func EmptyDetail(slug string) DetailRecord {
	return DetailRecord{Slug: slug}
}

// IsEmpty reports whether no field besides the slug was populated.
func (d DetailRecord) IsEmpty() bool {
	return d.Year == nil && d.RuntimeMinutes == nil && d.Language == nil &&
		d.AvgRating == nil && d.NumWatched == nil && d.NumLiked == nil &&
		len(d.Genres) == 0 && len(d.Themes) == 0 && len(d.Directors) == 0 &&
		len(d.Cast) == 0 && len(d.Studios) == 0 && len(d.Countries) == 0
}

// FilmRecord is the merged row handed to exports and the API: the listing
// fields plus the detail fields for the same slug.
type FilmRecord struct {
	Slug           string   `json:"film_slug"`
	Title          string   `json:"title"`
	Rating         *float64 `json:"rating"`
	Liked          bool     `json:"liked"`
	Year           *int     `json:"year"`
	RuntimeMinutes *int     `json:"runtime"`
	Genres         []string `json:"genres"`
	Themes         []string `json:"themes"`
	Directors      []string `json:"directors"`
	Cast           []string `json:"cast"`
	Studios        []string `json:"studios"`
	Countries      []string `json:"countries"`
	Language       *string  `json:"language"`
	AvgRating      *float64 `json:"avg_rating"`
	NumWatched     *int     `json:"num_watched"`
	NumLiked       *int     `json:"num_liked"`
}

// DiaryEntry is one logged viewing from a user's diary.
type DiaryEntry struct {
	Slug        string     `json:"film_slug"`
	Title       string     `json:"name"`
	WatchedDate *time.Time `json:"date"`
	Rating      *float64   `json:"rating"`
	Year        *int       `json:"year"`
}

// FailedFetch records a film whose detail pages could not be fetched.
type FailedFetch struct {
	Username             string
	Slug                 string
	FailureReason        string
	HTTPStatusCode       int
	LastAttemptTimestamp time.Time
	RetryCount           int
}

// JobState is the lifecycle of a background scrape.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// JobStatus is the API view of a background scrape.
type JobStatus struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	State      JobState   `json:"state"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Films      int        `json:"films"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
