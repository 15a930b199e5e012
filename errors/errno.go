// This package mirrors POSIX-ish errno-flavored sentinels for the handful of
// failure modes this filesystem can actually produce. It intentionally does
// not carry the full disko taxonomy (no multi-user identity, no links, no
// quotas, no cross-device anything).

package errors

import (
	"fmt"
)

type DiskoError string

const ErrAlreadyInProgress = DiskoError("Operation already in progress")
const ErrArgumentOutOfRange = DiskoError("Numerical argument out of domain")
const ErrDirectoryNotEmpty = DiskoError("Directory not empty")
const ErrExists = DiskoError("File exists")
const ErrFileSystemCorrupted = DiskoError("Structure needs cleaning")
const ErrInvalidArgument = DiskoError("Invalid argument")
const ErrInvalidFileDescriptor = DiskoError("Bad file descriptor")
const ErrIOFailed = DiskoError("Input/output error")
const ErrIsADirectory = DiskoError("Is a directory")
const ErrNameTooLong = DiskoError("File name too long")
const ErrNoSpaceOnDevice = DiskoError("No space left on device")
const ErrNotADirectory = DiskoError("Not a directory")
const ErrNotFound = DiskoError("No such file or directory")

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		kind:    e,
		message: fmt.Sprintf("%s: %s", e.Error(), message),
	}
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		kind:    e,
		message: fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		cause:   err,
	}
}
