// Package panel models the playground configuration panel: titled items
// with an optional track toggle, device selector and collapsible body.
package panel

import (
	"errors"
	"sync"

	"playground-transcript-feed/internal/models"
)

// ErrItemNotFound is returned for titles that are not on the panel.
var ErrItemNotFound = errors.New("panel item not found")

// DeviceKind is the media device class a selector lists.
type DeviceKind string

const (
	DeviceNone       DeviceKind = ""
	DeviceVideoInput DeviceKind = "videoinput"
	DeviceAudioInput DeviceKind = "audioinput"
)

// ToggleSource maps a media source to the source a track toggle controls.
// Unknown sources fall back to the camera.
func ToggleSource(source models.TrackSource) models.TrackSource {
	switch source {
	case models.SourceCamera, models.SourceMicrophone,
		models.SourceScreenShare, models.SourceScreenShareAudio:
		return source
	default:
		return models.SourceCamera
	}
}

// DeviceKindFor returns the device class selectable for a source.
func DeviceKindFor(source models.TrackSource) DeviceKind {
	switch source {
	case models.SourceCamera:
		return DeviceVideoInput
	case models.SourceMicrophone:
		return DeviceAudioInput
	default:
		return DeviceNone
	}
}

// Item is one panel entry.
type Item struct {
	Title        string
	Source       models.TrackSource // empty when the item controls no track
	Collapsible  bool
	Collapsed    bool
	TrackEnabled bool
}

// Option configures an Item.
type Option func(*Item)

func WithSource(source models.TrackSource) Option {
	return func(it *Item) {
		it.Source = source
		it.TrackEnabled = true
	}
}

func WithCollapsible() Option {
	return func(it *Item) { it.Collapsible = true }
}

// WithDefaultCollapsed starts the item collapsed. It implies WithCollapsible.
func WithDefaultCollapsed() Option {
	return func(it *Item) {
		it.Collapsible = true
		it.Collapsed = true
	}
}

func NewItem(title string, opts ...Option) *Item {
	it := &Item{Title: title}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Toggle flips the collapse state. Non-collapsible items are left alone.
func (it *Item) Toggle() bool {
	if !it.Collapsible {
		return false
	}
	it.Collapsed = !it.Collapsed
	return true
}

// ItemView is the render model of an Item.
type ItemView struct {
	Title          string             `json:"title"`
	ToggleSource   models.TrackSource `json:"toggleSource,omitempty"`
	TrackEnabled   bool               `json:"trackEnabled,omitempty"`
	DeviceKind     DeviceKind         `json:"deviceKind,omitempty"`
	CollapseButton bool               `json:"collapseButton"`
	Rotated        bool               `json:"rotated"`
	BodyVisible    bool               `json:"bodyVisible"`
}

func (it *Item) View() ItemView {
	v := ItemView{
		Title:          it.Title,
		CollapseButton: it.Collapsible,
		Rotated:        it.Collapsible && !it.Collapsed,
		BodyVisible:    !it.Collapsed,
	}
	if it.Source != "" {
		v.ToggleSource = ToggleSource(it.Source)
		v.TrackEnabled = it.TrackEnabled
		v.DeviceKind = DeviceKindFor(it.Source)
	}
	return v
}

// Panel is an ordered, title-keyed set of items. It is safe for concurrent use.
type Panel struct {
	mu    sync.Mutex
	items []*Item
}

func New(items ...*Item) *Panel {
	p := &Panel{}
	for _, it := range items {
		p.Add(it)
	}
	return p
}

// NewDefault returns the standard playground panel.
func NewDefault() *Panel {
	return New(
		NewItem("Camera", WithSource(models.SourceCamera)),
		NewItem("Microphone", WithSource(models.SourceMicrophone)),
		NewItem("Transcript", WithCollapsible()),
		NewItem("Room", WithDefaultCollapsed()),
	)
}

// Add appends an item, replacing any item with the same title in place.
func (p *Panel) Add(it *Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.index(it.Title); i >= 0 {
		p.items[i] = it
		return
	}
	p.items = append(p.items, it)
}

func (p *Panel) index(title string) int {
	for i, it := range p.items {
		if it.Title == title {
			return i
		}
	}
	return -1
}

// Toggle flips the collapse state of the titled item and returns its view.
func (p *Panel) Toggle(title string) (ItemView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(title)
	if i < 0 {
		return ItemView{}, ErrItemNotFound
	}
	p.items[i].Toggle()
	return p.items[i].View(), nil
}

// SetTrackEnabled sets the track toggle of the titled item.
func (p *Panel) SetTrackEnabled(title string, enabled bool) (ItemView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.index(title)
	if i < 0 {
		return ItemView{}, ErrItemNotFound
	}
	p.items[i].TrackEnabled = enabled
	return p.items[i].View(), nil
}

// Views returns the render models in panel order.
func (p *Panel) Views() []ItemView {
	p.mu.Lock()
	defer p.mu.Unlock()
	views := make([]ItemView, 0, len(p.items))
	for _, it := range p.items {
		views = append(views, it.View())
	}
	return views
}
