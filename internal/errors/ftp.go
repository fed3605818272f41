package errors

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"net"
	"net/textproto"

	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

// Classify converts a backend or engine error into an *utils.AppError carrying
// a stable code, a retryable hint and a suggested action. op names the failed
// operation ("copy", "scan", ...) and target the path it acted on.
func Classify(op, target string, err error, logger logging.Logger) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	var code, action string
	var retryable bool
	replyCode := 0

	var tpErr *textproto.Error
	var netErr net.Error
	switch {
	case stderrors.As(err, &tpErr):
		replyCode = tpErr.Code
		code, retryable, action = classifyReply(tpErr.Code)
	case stderrors.Is(err, context.Canceled):
		code = utils.ErrCodeCancelled
	case stderrors.Is(err, context.DeadlineExceeded):
		code = utils.ErrCodeTimeout
		retryable = true
	case stderrors.Is(err, fs.ErrNotExist):
		code = utils.ErrCodeFileNotFound
		action = "check that the path still exists on both sides"
	case stderrors.Is(err, fs.ErrPermission):
		code = utils.ErrCodePermissionDenied
		action = "check file permissions for the syncing user"
	case stderrors.Is(err, io.EOF), stderrors.Is(err, net.ErrClosed):
		code = utils.ErrCodeSessionLost
		retryable = true
		action = "the remote closed the session; run the sync again"
	case stderrors.As(err, &netErr):
		code = utils.ErrCodeNetworkError
		retryable = true
		if netErr.Timeout() {
			code = utils.ErrCodeTimeout
			action = "increase --ftp-timeout or check connectivity"
		}
	default:
		code = utils.ErrCodeIOError
	}

	logger.Error("Operation failed",
		logging.F("op", op),
		logging.F("path", target),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("error", err.Error()),
	)

	builder := utils.NewCLIError(code, err.Error()).
		WithRetryable(retryable).
		WithContext("op", op)
	if target != "" {
		builder.WithContext("path", target)
	}
	if replyCode != 0 {
		builder.WithReplyCode(replyCode)
	}
	if action != "" {
		builder.WithSuggestedAction(action)
	}
	return utils.WrapAppError(builder.Build(), err)
}

func classifyReply(code int) (errCode string, retryable bool, action string) {
	switch code {
	case 421:
		return utils.ErrCodeSessionLost, true, "the server closed the control connection; run the sync again"
	case 425, 426:
		return utils.ErrCodeNetworkError, true, "data connection failed; check passive mode and firewalls"
	case 430, 530, 532:
		return utils.ErrCodeAuthFailed, false, "verify the user and password in the ftp:// URL or keyring"
	case 450, 550:
		return utils.ErrCodeFileNotFound, false, "the file is unavailable or access was refused"
	case 451, 452, 552:
		return utils.ErrCodeIOError, true, "the server could not store the file; check free space"
	case 553:
		return utils.ErrCodeInvalidPath, false, "the server rejected the file name"
	case 500, 501, 502, 504:
		return utils.ErrCodeInvalidArgument, false, "the server does not support this command"
	}
	if code >= 400 && code < 500 {
		return utils.ErrCodeNetworkError, true, ""
	}
	return utils.ErrCodeUnknown, false, ""
}
