package notify

import "github.com/alfredjeanlab/feedpulse/internal/model"

// Recorder observes engine activity, typically to export metrics. Calls
// happen outside the engine's state lock but may be concurrent.
type Recorder interface {
	Published(ev model.Event, historySize int)
	Delivered(ev model.Event)
	Faulted(ev model.Event, err *DeliveryError)
	SubscribersChanged(projectID string, active int)
}

type nopRecorder struct{}

func (nopRecorder) Published(model.Event, int)          {}
func (nopRecorder) Delivered(model.Event)               {}
func (nopRecorder) Faulted(model.Event, *DeliveryError) {}
func (nopRecorder) SubscribersChanged(string, int)      {}
