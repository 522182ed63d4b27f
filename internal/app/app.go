package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/msa-world/geoinformatic-drive/internal/auth"
	"github.com/msa-world/geoinformatic-drive/internal/crypto"
	"github.com/msa-world/geoinformatic-drive/internal/drive"
	"github.com/msa-world/geoinformatic-drive/internal/handler"
	"github.com/msa-world/geoinformatic-drive/internal/secret"
	"github.com/msa-world/geoinformatic-drive/internal/store"
)

// App holds the dependencies for the Lambda function.
type App struct {
	connectHandler   *handler.ConnectHandler
	fileHandler      *handler.FileHandler
	apiGatewaySecret string
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	// DynamoDB Client
	dynamoClient := dynamodb.NewFromConfig(cfg)

	// KMS Client
	var kmsService crypto.Encryptor
	if os.Getenv("DEV_MODE") == "true" {
		kmsService = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsClient := kms.NewFromConfig(cfg)
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/geoinformatic-drive-token-key"
		}
		kmsService = crypto.NewKMSService(kmsClient, kmsKeyID)
	}

	accountsTable := os.Getenv("DRIVE_ACCOUNTS_TABLE")
	if accountsTable == "" {
		accountsTable = "DriveAccounts"
	}
	profilesTable := os.Getenv("PROFILES_TABLE")
	if profilesTable == "" {
		profilesTable = "Profiles"
	}
	accounts := store.NewAccounts(dynamoClient, accountsTable, profilesTable, kmsService)

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if os.Getenv("DEV_MODE") == "true" {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	googleClientSecret := resolveSecret(ctx, resolver, "GOOGLE_CLIENT_SECRET_PARAM", "/geoinformatic/drive/google-client-secret", "")
	jwtSecret := resolveSecret(ctx, resolver, "JWT_SECRET_PARAM", "/geoinformatic/drive/jwt-secret", "default-dev-secret")
	adminSecret := resolveSecret(ctx, resolver, "ADMIN_SECRET_PARAM", "/geoinformatic/drive/admin-secret", "")
	apiGatewaySecret := resolveSecret(ctx, resolver, "API_GATEWAY_SECRET_PARAM", "/geoinformatic/drive/api-gateway-secret", "")

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	// OAuth2 Config
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")
	if redirectURL == "" {
		if os.Getenv("DEV_MODE") == "true" {
			redirectURL = "http://localhost:8080/drive/callback"
		} else {
			redirectURL = frontendURL + "/api/drive/callback"
		}
	}

	oauthConfig := &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: googleClientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/drive.file",
		},
		Endpoint: google.Endpoint,
	}

	authService := auth.NewService(oauthConfig, jwtSecret)

	newClient := func(ctx context.Context, accessToken string) (*drive.Client, error) {
		return drive.NewClient(ctx, accessToken)
	}

	return &App{
		connectHandler:   handler.NewConnectHandler(accounts, authService, jwtSecret, adminSecret, frontendURL),
		fileHandler:      handler.NewFileHandler(accounts, authService, newClient, jwtSecret, adminSecret),
		apiGatewaySecret: apiGatewaySecret,
	}
}

// resolveSecret reads a secret via the resolver, with the parameter name
// overridable through an env var and an optional fallback value.
func resolveSecret(ctx context.Context, resolver secret.Resolver, paramEnv, defaultParam, fallback string) string {
	param := os.Getenv(paramEnv)
	if param == "" {
		param = defaultParam
	}
	value, err := resolver.GetSecret(ctx, param)
	if err != nil {
		fmt.Printf("WARNING: failed to resolve %s: %v\n", param, err)
		return fallback
	}
	return value
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	// Skip check if DEV_MODE is true
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	if strings.HasPrefix(path, "/drive") {
		switch {
		case path == "/drive/connect" && method == "GET":
			return corsResponse(must(app.connectHandler.Connect(ctx, req))), nil
		case path == "/drive/callback" && method == "GET":
			return corsResponse(must(app.connectHandler.Callback(ctx, req))), nil
		case path == "/drive/status" && method == "GET":
			return corsResponse(must(app.connectHandler.Status(ctx, req))), nil
		case path == "/drive/disconnect" && method == "POST":
			return corsResponse(must(app.connectHandler.Disconnect(ctx, req))), nil
		case path == "/drive/files" && method == "GET":
			return corsResponse(must(app.fileHandler.ListFiles(ctx, req))), nil
		case path == "/drive/files" && method == "POST":
			return corsResponse(must(app.fileHandler.UploadFile(ctx, req))), nil
		}

		// /drive/files/{id} and /drive/files/{id}/download
		if strings.HasPrefix(path, "/drive/files/") {
			parts := strings.Split(strings.TrimPrefix(path, "/drive/files/"), "/")
			req.PathParameters["id"] = parts[0]

			if len(parts) == 2 && parts[1] == "download" && method == "GET" {
				return corsResponse(must(app.fileHandler.DownloadFile(ctx, req))), nil
			}
			if len(parts) == 1 && method == "DELETE" {
				return corsResponse(must(app.fileHandler.DeleteFile(ctx, req))), nil
			}
		}
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,DELETE,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization,X-Admin-Secret"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
