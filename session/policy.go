package session

import "github.com/hazyhaar/softnav/location"

// DOM attributes consulted by the interception policy. Drivers serialize
// these off the clicked element and its ancestors so the policy runs
// without a live DOM.
const (
	// MarkerAttr toggles link interception. The nearest ancestor
	// carrying it decides; only the literal "false" opts out.
	MarkerAttr = "data-softnav"

	// ActionAttr overrides the navigation action for a link. Values
	// outside the recognized action set are ignored.
	ActionAttr = "data-softnav-action"
)

// Element is the injectable attribute reader the link policy walks.
// Parent returns nil at the root.
type Element interface {
	Attr(name string) (string, bool)
	Parent() Element
}

// AttrElement is a map-backed Element for drivers and tests.
type AttrElement struct {
	Attrs  map[string]string
	Up     *AttrElement
	TagVal string
}

// Attr returns the attribute value, distinguishing absent from empty.
func (e *AttrElement) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Parent returns the enclosing element, or nil.
func (e *AttrElement) Parent() Element {
	if e.Up == nil {
		return nil
	}
	return e.Up
}

// Tag returns the element's tag name, if the driver recorded one.
func (e *AttrElement) Tag() string { return e.TagVal }

// LinkVisitable walks up from the element to the nearest ancestor carrying
// the marker attribute. Only the literal "false" there opts the link out;
// any other value, or no marked ancestor at all, leaves it visitable.
func LinkVisitable(el Element) bool {
	for e := el; e != nil; e = e.Parent() {
		if v, ok := e.Attr(MarkerAttr); ok {
			return v != "false"
		}
	}
	return true
}

// ActionForLink reads the per-link action override. Missing, empty, or
// unrecognized values default to advance.
func ActionForLink(el Element) Action {
	if el != nil {
		if v, ok := el.Attr(ActionAttr); ok {
			if action, recognized := ParseAction(v); recognized {
				return action
			}
		}
	}
	return ActionAdvance
}

// WillFollowLink is the composite interception gate for a clicked link:
// the link opts in, the location is visitable, and no click hook vetoes.
// When it returns false the observer must leave the browser's default
// handling alone.
func (s *Session) WillFollowLink(el Element, loc location.Location) bool {
	return LinkVisitable(el) &&
		s.locationVisitable(loc) &&
		s.hooks.fireClick(ClickEvent{Target: el, Location: loc})
}

// FollowedLink resolves the per-link action and visits. Call only after
// WillFollowLink permitted the click.
func (s *Session) FollowedLink(el Element, loc location.Location) {
	s.VisitLocation(loc, VisitOptions{Action: ActionForLink(el)})
}

// HandleLinkClick is the observer entry point for a raw click intent:
// resolve the href against the current location, run the gate, and follow.
// It reports whether the click was intercepted, i.e. whether the observer
// should suppress the default navigation.
func (s *Session) HandleLinkClick(el Element, href string) bool {
	loc, err := location.Resolve(s.Location(), href)
	if err != nil {
		s.logger.Debug("session: unparseable link href", "href", href, "error", err)
		return false
	}
	if !s.WillFollowLink(el, loc) {
		return false
	}
	s.FollowedLink(el, loc)
	return true
}

// FormSubmitHandler is optionally implemented by adapters that realize
// form submissions.
type FormSubmitHandler interface {
	SubmitForm(form Element, action location.Location)
}

// WillSubmitForm is the pre-submission gate. Always true today; reserved
// as an extension point.
func (s *Session) WillSubmitForm(form Element) bool {
	return true
}

// HandleFormSubmit routes an accepted submission to the adapter's submit
// handling. Reports whether the submission was taken over.
func (s *Session) HandleFormSubmit(form Element, action string) bool {
	if !s.WillSubmitForm(form) {
		return false
	}
	loc, err := location.Resolve(s.Location(), action)
	if err != nil {
		s.logger.Debug("session: unparseable form action", "action", action, "error", err)
		return false
	}
	fh, ok := s.adapter.(FormSubmitHandler)
	if !ok {
		return false
	}
	fh.SubmitForm(form, loc)
	return true
}
