package domain

import "errors"

var (
	// ErrValidation is returned when a request is missing a required field or path parameter.
	ErrValidation = errors.New("validation failed")
	// ErrUserNotFound is returned when an account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrCourseNotFound is returned when a course does not exist in the catalog.
	ErrCourseNotFound = errors.New("course not found")
	// ErrAlreadyEnrolled is returned when a learner enrolls in a course twice.
	ErrAlreadyEnrolled = errors.New("user is already enrolled in this course")
	// ErrNotEnrolled is returned when progress is written for a course the learner never enrolled in.
	ErrNotEnrolled = errors.New("user is not enrolled in this course")
	// ErrUsernameTaken is returned on registration with an existing username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrEmailTaken is returned on registration with an email already in use.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidCredentials is returned when a login does not match a stored account.
	ErrInvalidCredentials = errors.New("invalid username or password")
)
