package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"

	"github.com/maxvaer/proxyftp/internal/ftpclient"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

// Step names the FTP phase an error came from.
type Step string

const (
	StepConnect Step = "connect"
	StepLogin   Step = "login"
	StepCwd     Step = "cwd"
	StepList    Step = "list"
	StepRetr    Step = "retr"
)

// StepError tags an error with the FTP phase that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Classify maps an error from a probe or retrieval onto a Status. A nil
// error is a Success.
func Classify(err error) Status {
	if err == nil {
		return Success
	}

	var ce *tunnel.ConnectError
	if errors.As(err, &ce) {
		return DeadProxy
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}

	var te *textproto.Error
	isReply := errors.As(err, &te)
	var se *StepError
	if errors.As(err, &se) {
		switch {
		case se.Step == StepLogin && isReply:
			return AuthFailure
		case se.Step == StepCwd:
			return OtherFailure
		}
	}
	if isReply && ftpclient.IsAuthCode(te.Code) {
		return AuthFailure
	}
	return OtherFailure
}
