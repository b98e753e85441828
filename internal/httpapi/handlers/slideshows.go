package handlers

import (
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"montage/internal/httpkit"
	"montage/internal/pkg/errors"
	"montage/internal/slideshow/job"
)

const defaultVideoName = "slideshow.mp4"

var errSecondsRange = stderrors.New("seconds out of range")

// PostSlideshow renders a multipart upload synchronously and streams the
// video back as an attachment.
func (h *Handler) PostSlideshow(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errors.ResourceExhausted(err, "upload exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
		}
		return errors.WrapWithCode(err, errors.CodeBadRequest, "slideshow.form", "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	in, err := slideshowInput(r.MultipartForm)
	if err != nil {
		return err
	}

	start := time.Now()
	j, err := h.renderer.Intake().Accept(ctx, in)
	if err != nil {
		return err
	}
	video, err := h.renderer.Render(ctx, j)
	if err != nil {
		return err
	}
	defer video.Close()

	name := videoName(in)
	n, err := httpkit.Stream(w, "video/mp4", name, video.Size(), video)
	if err != nil {
		// Headers are gone; all that is left is to record the broken stream.
		log.Warn("video stream interrupted", "error", err.Error(), "written", n)
		return nil
	}
	log.Info("slideshow rendered",
		"slides", len(in.Slides),
		"frames", video.Frames(),
		"bytes", n,
		"filename", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// slideshowInput reads the form fields. Per-slide lists are matched by index
// to the images; missing entries fall back to defaults.
func slideshowInput(form *multipart.Form) (job.Input, error) {
	files := formFiles(form, "images")
	if len(files) == 0 {
		return job.Input{}, errors.ValidationField("images", "at least one image is required")
	}

	var in job.Input
	if v := formValue(form, "duration"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d <= 0 {
			return job.Input{}, errors.ValidationField("duration", secondsMessage(err, "duration must be a positive number of seconds"))
		}
		in.DefaultDuration = d
	}
	if v := formValue(form, "transition_window"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d < 0 {
			return job.Input{}, errors.ValidationField("transition_window", secondsMessage(err, "transition window must be a non-negative number of seconds"))
		}
		in.TransitionWindow = &d
	}
	if v := formValue(form, "seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return job.Input{}, errors.ValidationField("seed", "seed must be an unsigned integer")
		}
		in.Seed = &seed
	}

	texts := formValues(form, "texts")
	positions := formValues(form, "positions")
	durations := formValues(form, "durations")
	darkening := formValues(form, "darkening")
	transitions := formValues(form, "transitions")
	effects := formValues(form, "effects")

	in.Slides = make([]job.SlideInput, len(files))
	for i, fh := range files {
		field := fmt.Sprintf("slides[%d]", i)
		data, err := readPart(fh)
		if err != nil {
			return job.Input{}, errors.WrapWithCode(err, errors.CodeBadRequest, "slideshow.form", "cannot read upload").
				WithField("field", field+".image")
		}
		s := job.SlideInput{
			Image:      data,
			Text:       at(texts, i),
			Transition: strings.TrimSpace(at(transitions, i)),
			Effect:     strings.TrimSpace(at(effects, i)),
		}
		if v := strings.TrimSpace(at(positions, i)); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return job.Input{}, errors.ValidationField(field+".position", "position must be a number")
			}
			s.Position = &p
		}
		if v := strings.TrimSpace(at(durations, i)); v != "" {
			d, err := parseSeconds(v)
			if err != nil {
				return job.Input{}, errors.ValidationField(field+".duration", secondsMessage(err, "duration must be a number of seconds"))
			}
			s.Duration = &d
		}
		// A single darkening value applies to every slide.
		dv := at(darkening, i)
		if len(darkening) == 1 {
			dv = darkening[0]
		}
		if dv = strings.TrimSpace(dv); dv != "" {
			v, err := strconv.ParseFloat(dv, 64)
			if err != nil {
				return job.Input{}, errors.ValidationField(field+".darkening", "darkening must be a number")
			}
			s.Darkening = &v
		}
		in.Slides[i] = s
	}

	if music := formFiles(form, "music"); len(music) > 0 {
		data, err := readPart(music[0])
		if err != nil {
			return job.Input{}, errors.WrapWithCode(err, errors.CodeBadRequest, "slideshow.form", "cannot read upload").
				WithField("field", "music")
		}
		in.Audio = data
	}
	return in, nil
}

// videoName derives the download name from the first caption.
func videoName(in job.Input) string {
	if len(in.Slides) == 0 {
		return defaultVideoName
	}
	text := in.Slides[0].Text
	if r := []rune(text); len(r) > 20 {
		text = string(r[:20])
	}
	text = strings.TrimSpace(text)
	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', '"':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, text)
	if text == "" {
		return defaultVideoName
	}
	return text + ".mp4"
}

func parseSeconds(v string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	// Out-of-range floats have no defined Duration conversion.
	if math.IsNaN(secs) || math.Abs(secs) > job.MaxTotalDuration.Seconds() {
		return 0, errSecondsRange
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func secondsMessage(err error, fallback string) string {
	if stderrors.Is(err, errSecondsRange) {
		return fmt.Sprintf("must not exceed %s", job.MaxTotalDuration)
	}
	return fallback
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formValues accepts both "name" and "name[]" keys.
func formValues(form *multipart.Form, name string) []string {
	if v := form.Value[name]; len(v) > 0 {
		return v
	}
	return form.Value[name+"[]"]
}

func formValue(form *multipart.Form, name string) string {
	if v := formValues(form, name); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func formFiles(form *multipart.Form, name string) []*multipart.FileHeader {
	if f := form.File[name]; len(f) > 0 {
		return f
	}
	return form.File[name+"[]"]
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}
