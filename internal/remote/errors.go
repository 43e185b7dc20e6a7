package remote

import "errors"

var (
	// ErrNotFound means the addressed document does not exist remotely.
	ErrNotFound = errors.New("remote document not found")

	// ErrUnreachable covers network failures and throttling: the request
	// never produced an authoritative answer and may be retried.
	ErrUnreachable = errors.New("remote store unreachable")

	// ErrRejected covers authoritative refusals such as permission or
	// validation failures. The push synchronizer currently treats it the
	// same as ErrUnreachable for retry accounting.
	ErrRejected = errors.New("remote store rejected request")
)
