package types

import (
	"context"
	"time"
)

// SubjectID identifies a person in the encodings database and the
// credential directory.
type SubjectID string

// Frame is one captured camera image. Data is the JPEG-encoded image as
// read from the source; the core never decodes it.
type Frame struct {
	At   time.Time
	Data []byte
}

// Box is a face bounding box in frame coordinates.
type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Detection is one face found in a frame by the external recognizer.
type Detection struct {
	Box    Box
	Vector []float64
}

// SubjectEncoding is one stored reference embedding for a subject. A
// subject typically has several.
type SubjectEncoding struct {
	Subject SubjectID
	Vector  []float64
}

// FrameSource supplies camera frames. NextFrame blocks until a frame is
// available or ctx is done; an error means the source has failed and the
// session should close rather than hang.
type FrameSource interface {
	NextFrame(ctx context.Context) (Frame, error)
}

// Recognizer locates faces in a frame and computes their embeddings.
// It may return zero detections.
type Recognizer interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}
