package lambda

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
)

// HTTPHandler serves API Gateway HTTP API (payload v2) events.
type HTTPHandler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// RESTHandler serves API Gateway REST API (payload v1) events.
type RESTHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// NewLambdaHandler adapts the portal router to HTTP API invocations.
func NewLambdaHandler(e *echo.Echo) HTTPHandler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}

func NewRESTHandler(e *echo.Echo) RESTHandler {
	adapter := echoadapter.New(e)
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	}
}

// NewHandler returns the lambda.Start entrypoint for the named payload:
// "http" (or empty) for HTTP APIs, "rest" for REST APIs.
func NewHandler(e *echo.Echo, payload string) (any, error) {
	switch strings.ToLower(payload) {
	case "", "http":
		return NewLambdaHandler(e), nil
	case "rest":
		return NewRESTHandler(e), nil
	default:
		return nil, fmt.Errorf("unsupported lambda payload %q", payload)
	}
}
