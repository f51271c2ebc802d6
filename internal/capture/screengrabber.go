package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenGrabber captures a physical display via the OS screenshot API.
type ScreenGrabber struct {
	display int
}

// NewScreenGrabber creates a grabber for the given display index.
func NewScreenGrabber(display int) (*ScreenGrabber, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", display, n)
	}
	return &ScreenGrabber{display: display}, nil
}

// Grab captures the display's current contents.
func (g *ScreenGrabber) Grab() (*image.RGBA, error) {
	img, err := screenshot.CaptureDisplay(g.display)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", g.display, err)
	}
	return img, nil
}
