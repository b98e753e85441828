package processor

import "path"

const videoMime = "video/mp4"

// VideoKey is where a job's rendered video is stored.
func VideoKey(jobID string) string {
	return path.Join("renders", jobID, "slideshow.mp4")
}
