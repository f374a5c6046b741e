package errors

import stderrors "errors"

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// KindOf returns the Kind of the first bridge error in err's chain.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if stderrors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
