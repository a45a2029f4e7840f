package endpoints

// ServicesConfig represents the top-level structure of services.yaml
//
//	services:
//	  - name: users
//	    url: http://users:4001/graphql
//	    timeoutMs: 2000
//	    maxRetries: 1
type ServicesConfig struct {
	Services []EndpointProps `yaml:"services" validate:"required,min=1,dive"`
}

// EndpointProps contains the properties of a single downstream service
type EndpointProps struct {
	Name       string `yaml:"name" validate:"required,hostname_rfc1123"`
	URL        string `yaml:"url" validate:"required,http_url"`
	TimeoutMs  int    `yaml:"timeoutMs" validate:"gte=0,lte=60000"`
	MaxRetries int    `yaml:"maxRetries" validate:"gte=0,lte=10"`
}
