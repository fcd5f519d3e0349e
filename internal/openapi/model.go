package openapi

type Spec struct {
	Service     string
	Title       string
	Version     string
	Description string
	Servers     []Server
	Operations  []Operation
}

type Server struct {
	URL         string
	Description string
}

type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Parameters  []Parameter
	Responses   []Response
}

type Parameter struct {
	Name     string
	Location string
	Required bool
}

type Response struct {
	StatusCode  string
	Description string
}

// Label is the one-line form used in operation lists.
func (o Operation) Label() string {
	if o.Summary != "" {
		return o.Method + " " + o.Path + "  " + o.Summary
	}
	return o.Method + " " + o.Path
}
