package domain

type CallerIdentityContextKey struct{}

type CallerIdentity struct {
	UserID string
	Email  string
}
