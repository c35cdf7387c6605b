package domain

import (
	"time"
)

// Video represents the metadata record for one uploaded video.
// A video is stored as two paired objects: this record as JSON (the commit
// record) and the binary payload it points at through VideoPath. The video
// only exists once both objects are present; anything else is treated as
// absent by listings.
type Video struct {
	// Title identifies the video within a class. Unique per user+class.
	Title string `json:"title"`

	// Subject is a free-form topic label.
	Subject string `json:"subject"`

	// UserEmail is the owning user's email.
	UserEmail string `json:"userEmail"`

	// ClassCode groups the video into a class.
	ClassCode string `json:"classCode"`

	// AccountType is the uploader's role at upload time.
	AccountType AccountType `json:"accountType"`

	// SchoolName scopes the video within the store.
	SchoolName string `json:"schoolName"`

	// ContentType is the MIME type of the payload (e.g. video/mp4).
	ContentType string `json:"contentType"`

	// Viewed marks whether the video has been watched.
	Viewed bool `json:"viewed"`

	// VideoPath is the store key of the binary payload object.
	VideoPath string `json:"videoPath"`

	// UploadedAt is the timestamp when the upload completed.
	UploadedAt time.Time `json:"uploadedAt"`
}

// NewVideo creates the metadata record for an upload.
func NewVideo(title, subject, userEmail, classCode string, accountType AccountType, schoolName, contentType, videoPath string) *Video {
	return &Video{
		Title:       title,
		Subject:     subject,
		UserEmail:   userEmail,
		ClassCode:   classCode,
		AccountType: accountType,
		SchoolName:  schoolName,
		ContentType: contentType,
		Viewed:      false,
		VideoPath:   videoPath,
		UploadedAt:  time.Now().UTC(),
	}
}

// VideoEntry is the listing view of a video: the stored metadata enriched
// with a time-limited access URL and derived fields.
type VideoEntry struct {
	Video

	// VideoURL is a presigned, credential-free link to the payload.
	VideoURL string `json:"videoUrl"`

	// VideoKey is the store key of the payload object.
	VideoKey string `json:"videoKey"`

	// MimeType mirrors the payload content type for player selection.
	MimeType string `json:"mimeType"`

	// ExpiresAt is when the presigned link stops working.
	ExpiresAt time.Time `json:"expiresAt"`
}
