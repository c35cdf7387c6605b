package blobstore

import (
	"path"
	"strings"
)

// Namespace prefixes within the flat bucket.
const (
	// UsersPrefix holds one JSON record per user, filename = email.
	UsersPrefix = "users/"

	// VideosPrefix holds paired metadata/payload objects laid out as
	// videos/<school>/<class>/<email>/<title>.{json,mp4}.
	VideosPrefix = "videos/"

	// MetaSuffix marks a video metadata record (the commit record).
	MetaSuffix = ".json"

	// DataSuffix marks a video binary payload.
	DataSuffix = ".mp4"
)

// UserKey returns the store key for a user record.
func UserKey(email string) string {
	return UsersPrefix + email + ".json"
}

// VideoMetaKey returns the store key for a video metadata record.
// Teachers and students share the same layout; only listing prefixes differ.
func VideoMetaKey(school, classCode, email, title string) string {
	return videoBase(school, classCode, email, title) + MetaSuffix
}

// VideoDataKey returns the store key for a video binary payload.
func VideoDataKey(school, classCode, email, title string) string {
	return videoBase(school, classCode, email, title) + DataSuffix
}

// SchoolPrefix returns the listing prefix covering a whole school.
// Teachers list this namespace and filter by class afterwards.
func SchoolPrefix(school string) string {
	return VideosPrefix + school + "/"
}

// ClassPrefix returns the listing prefix for one user's videos in one class.
// Students list this namespace per class code.
func ClassPrefix(school, classCode, email string) string {
	return VideosPrefix + school + "/" + classCode + "/" + email + "/"
}

// DataKeyForMeta derives the payload key paired with a metadata key.
func DataKeyForMeta(metaKey string) string {
	return strings.TrimSuffix(metaKey, MetaSuffix) + DataSuffix
}

// IsMetaKey reports whether a key names a metadata record.
func IsMetaKey(key string) bool {
	return strings.HasSuffix(key, MetaSuffix)
}

func videoBase(school, classCode, email, title string) string {
	return VideosPrefix + path.Join(school, classCode, email, title)
}
