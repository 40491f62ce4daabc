package overlay

import (
	"bytes"
	"fmt"

	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ValidateArtifact checks that the rendered bytes form a structurally sound
// PDF before they leave the process. Relaxed validation matches what common
// viewers accept.
func ValidateArtifact(data []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := pdfcpu.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("overlay: artifact validation: %w", err)
	}
	return nil
}
