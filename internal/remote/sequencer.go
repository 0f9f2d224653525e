package remote

import "errors"

// Sequencer applies responses from the user and poll channels in issuance
// order. A poll response that arrives while a user request is outstanding
// could race with that request's response on the same widgets, so it is
// held until the user response has been applied.
type Sequencer struct {
	held []heldResponse

	userPending func() bool
	apply       func(Channel, *Response) error
}

type heldResponse struct {
	ch   Channel
	resp *Response
}

// OnResponse applies resp, or holds it if it is a poll response and a user
// request is pending. After a user response has been applied every held
// response is drained. Apply errors are returned; the response counts as
// processed either way.
func (s *Sequencer) OnResponse(ch Channel, resp *Response) (held bool, err error) {
	if ch == ChannelPoll && s.userPending() {
		s.held = append(s.held, heldResponse{ch, resp})
		return true, nil
	}
	err = s.apply(ch, resp)
	if ch == ChannelUser {
		err = errors.Join(err, s.Drain())
	}
	return false, err
}

// Drain applies all held responses in arrival order. A failing response
// does not stop the ones behind it.
func (s *Sequencer) Drain() error {
	var errs []error
	for len(s.held) > 0 {
		h := s.held[0]
		s.held[0] = heldResponse{}
		s.held = s.held[1:]
		if err := s.apply(h.ch, h.resp); err != nil {
			errs = append(errs, err)
		}
	}
	s.held = nil
	return errors.Join(errs...)
}

// Len is the number of held responses.
func (s *Sequencer) Len() int { return len(s.held) }
