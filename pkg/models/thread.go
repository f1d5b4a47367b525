package models

// Kind names an entity table. It doubles as the change envelope data_type.
type Kind string

const (
	KindThread  Kind = "thread"
	KindSection Kind = "section"
	KindEvent   Kind = "event"
	KindUser    Kind = "user"
)

type Thread struct {
	ID          int64   `json:"id"`
	ThreadName  string  `json:"thread_name"`
	DisplayName string  `json:"display_name"`
	PostID      *string `json:"post_id"`
	Subreddit   *string `json:"subreddit"`
	// SpaceT0 is the launch time (epoch seconds)
	SpaceT0            *int64   `json:"space__t0"`
	VideoURL           *string  `json:"video_url"`
	SpaceXAPIID        *string  `json:"spacex__api_id"`
	CreatedByUserID    int64    `json:"created_by_user_id"`
	SectionsID         []int64  `json:"sections_id"`
	EventsID           []int64  `json:"events_id"`
	EventColumnHeaders []string `json:"event_column_headers"`
	// SpaceUTCColIndex marks the event column holding a UTC timestamp
	SpaceUTCColIndex *int `json:"space__utc_col_index"`
	IsLive           bool `json:"is_live"`
}

// Clone returns a copy that shares no slices with t.
func (t Thread) Clone() Thread {
	t.SectionsID = append([]int64{}, t.SectionsID...)
	t.EventsID = append([]int64{}, t.EventsID...)
	t.EventColumnHeaders = append([]string{}, t.EventColumnHeaders...)
	return t
}

// Posted reports whether the thread has been mirrored to an outbound post.
func (t Thread) Posted() bool {
	return t.PostID != nil && *t.PostID != ""
}

// ThreadInsert is the client supplied payload for creating a thread.
type ThreadInsert struct {
	ThreadName         string   `json:"thread_name"`
	DisplayName        string   `json:"display_name"`
	Subreddit          *string  `json:"subreddit"`
	SpaceT0            *int64   `json:"space__t0"`
	VideoURL           *string  `json:"video_url"`
	SpaceXAPIID        *string  `json:"spacex__api_id"`
	EventColumnHeaders []string `json:"event_column_headers"`
	SpaceUTCColIndex   *int     `json:"space__utc_col_index"`
	IsLive             *bool    `json:"is_live"`
}

// ThreadUpdate carries only the fields being changed. Nil means untouched.
type ThreadUpdate struct {
	DisplayName        *string   `json:"display_name,omitempty"`
	SpaceT0            *int64    `json:"space__t0,omitempty"`
	VideoURL           *string   `json:"video_url,omitempty"`
	SpaceXAPIID        *string   `json:"spacex__api_id,omitempty"`
	SectionsID         *[]int64  `json:"sections_id,omitempty"`
	EventsID           *[]int64  `json:"events_id,omitempty"`
	EventColumnHeaders *[]string `json:"event_column_headers,omitempty"`
	IsLive             *bool     `json:"is_live,omitempty"`
}

// Apply writes every set field of u onto t.
func (u ThreadUpdate) Apply(t *Thread) {
	if u.DisplayName != nil {
		t.DisplayName = *u.DisplayName
	}
	if u.SpaceT0 != nil {
		t.SpaceT0 = u.SpaceT0
	}
	if u.VideoURL != nil {
		t.VideoURL = u.VideoURL
	}
	if u.SpaceXAPIID != nil {
		t.SpaceXAPIID = u.SpaceXAPIID
	}
	if u.SectionsID != nil {
		t.SectionsID = append([]int64{}, (*u.SectionsID)...)
	}
	if u.EventsID != nil {
		t.EventsID = append([]int64{}, (*u.EventsID)...)
	}
	if u.EventColumnHeaders != nil {
		t.EventColumnHeaders = append([]string{}, (*u.EventColumnHeaders)...)
	}
	if u.IsLive != nil {
		t.IsLive = *u.IsLive
	}
}
