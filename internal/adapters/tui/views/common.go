package views

import "specbook/internal/domain"

// ViewState contains common state shared by all view models.
// Embed this struct in view models to get width/height and message handling.
type ViewState struct {
	Width      int
	Height     int
	Message    string
	MessageErr bool
}

// SetSize updates the view dimensions
func (s *ViewState) SetSize(width, height int) {
	s.Width = width
	s.Height = height
}

// SetMessage sets a message to display in the view
func (s *ViewState) SetMessage(msg string, isErr bool) {
	s.Message = msg
	s.MessageErr = isErr
}

// ClearMessage clears the current message
func (s *ViewState) ClearMessage() {
	s.Message = ""
	s.MessageErr = false
}

// Messages for view switching
type SwitchToDetailMsg struct {
	Node  domain.FeatureNode
	Entry *domain.MappingEntry // nil when the feature has no mapping yet
}

type SwitchToChangelogMsg struct {
	Index *domain.FeatureMappingIndex
}

type SwitchToHelpMsg struct{}

type SwitchToResetMsg struct{}

type SwitchToDashboardMsg struct {
	Reload bool
}

// OpenEditorMsg asks the app to open path at line in the editor
type OpenEditorMsg struct {
	Path string
	Line int
}
