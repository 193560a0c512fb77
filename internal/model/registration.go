package model

// RegistrationMode selects how a fresh device registration authenticates.
type RegistrationMode struct {
	kind     string
	Login    string
	Password string
	Code     string
}

func Anonymous() RegistrationMode {
	return RegistrationMode{kind: "anonymous"}
}

func WithCredentials(login, password string) RegistrationMode {
	return RegistrationMode{kind: "credentials", Login: login, Password: password}
}

func WithCode(code string) RegistrationMode {
	return RegistrationMode{kind: "code", Code: code}
}

func (m RegistrationMode) IsAnonymous() bool   { return m.kind == "anonymous" || m.kind == "" }
func (m RegistrationMode) IsCredentials() bool { return m.kind == "credentials" }
func (m RegistrationMode) IsCode() bool        { return m.kind == "code" }
