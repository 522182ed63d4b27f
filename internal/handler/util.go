package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
)

// ResolveProfileID returns the profile id the request acts on. A request
// carrying the admin shared secret plus an explicit userId parameter acts on
// that user's behalf; otherwise the JWT session (Authorization header or
// session cookie) decides.
func ResolveProfileID(req events.APIGatewayProxyRequest, jwtSecret, adminSecret string) (string, error) {
	// Helper for case-insensitive header lookup
	getHeader := func(name string) string {
		for k, v := range req.Headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	if adminSecret != "" && getHeader("X-Admin-Secret") == adminSecret {
		if uid := req.QueryStringParameters["userId"]; uid != "" {
			return uid, nil
		}
	}

	// 1. Check Authorization Header (Bearer <token>)
	tokenString := ""
	authHeader := getHeader("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 2. Check Cookie
	if tokenString == "" {
		cookies := getHeader("Cookie")
		if cookies != "" {
			for _, part := range strings.Split(cookies, ";") {
				part = strings.TrimSpace(part)
				if strings.HasPrefix(part, "session_token=") {
					tokenString = strings.TrimPrefix(part, "session_token=")
					break
				}
			}
		}
	}

	if tokenString == "" {
		return "", fmt.Errorf("no authorization token found")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if sub, ok := claims["sub"].(string); ok {
			return sub, nil
		}
	}

	return "", fmt.Errorf("invalid token claims")
}

// jsonResponse marshals payload into an API Gateway JSON response.
func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// failure builds the {success:false, message} envelope every operation uses
// for errors.
func failure(status int, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, map[string]any{
		"success": false,
		"message": message,
	})
}
