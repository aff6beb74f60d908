package webhook

// Parameters holds the extra parameters declared on a webhook definition,
// such as the bodySignature block. Values come straight from the YAML or
// JSON decoder, so nested mappings are map[string]any.
type Parameters map[string]any

// Metadata returns the nested mapping stored under key.
func (p Parameters) Metadata(key string) (Parameters, bool) {
	switch v := p[key].(type) {
	case Parameters:
		return v, true
	case map[string]any:
		return Parameters(v), true
	case map[string]string:
		out := make(Parameters, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// String returns the string stored under key. Missing, null and non-string
// values all report false.
func (p Parameters) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

func (p Parameters) clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// SignatureSpec is the parsed bodySignature block.
type SignatureSpec struct {
	SecretEnvVarName string
	HeaderName       string
}

// SignatureState says how much of the bodySignature block is usable.
type SignatureState int

const (
	// SignatureAbsent: no bodySignature block, or it is not a mapping.
	SignatureAbsent SignatureState = iota
	// SignatureIncomplete: a field is missing, null or not a string.
	SignatureIncomplete
	// SignatureComplete: both fields are strings.
	SignatureComplete
)

// String is the reason logged when signing is skipped.
func (s SignatureState) String() string {
	switch s {
	case SignatureAbsent:
		return "no configuration"
	case SignatureIncomplete:
		return "incomplete configuration"
	default:
		return "complete"
	}
}

// ParseSignatureSpec reads the bodySignature block from params. The spec is
// only meaningful when the state is SignatureComplete.
func ParseSignatureSpec(params Parameters) (SignatureSpec, SignatureState) {
	meta, ok := params.Metadata(BodySignatureParameter)
	if !ok {
		return SignatureSpec{}, SignatureAbsent
	}
	secretName, okSecret := meta.String("secretEnvVarName")
	headerName, okHeader := meta.String("headerName")
	if !okSecret || !okHeader {
		return SignatureSpec{}, SignatureIncomplete
	}
	return SignatureSpec{SecretEnvVarName: secretName, HeaderName: headerName}, SignatureComplete
}
