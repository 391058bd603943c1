package heuristics

import (
	"bytes"
	"context"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIFCheck is informational only: it annotates the submission with camera
// metadata and never rejects. Most re-shared or generated images carry no
// EXIF at all, which is itself a useful annotation.
type EXIFCheck struct{}

func NewEXIFCheck() *EXIFCheck { return &EXIFCheck{} }

func (c *EXIFCheck) Name() string { return "exif" }

func (c *EXIFCheck) Evaluate(ctx context.Context, p *Payload) (Result, error) {
	res := Pass(c.Name())
	res.Annotations = map[string]string{}

	x, err := exif.Decode(bytes.NewReader(p.Bytes))
	if err != nil {
		res.Annotations["exif_present"] = "false"
		return res, nil
	}
	res.Annotations["exif_present"] = "true"

	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			res.Annotations["camera_make"] = v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			res.Annotations["camera_model"] = v
		}
	}
	if dt, err := x.DateTime(); err == nil {
		res.Annotations["captured_at"] = dt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if _, _, err := x.LatLong(); err == nil {
		res.Annotations["has_gps"] = "true"
	} else {
		res.Annotations["has_gps"] = "false"
	}

	return res, nil
}
