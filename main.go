/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           Docflow Gin API
// @version         1.0
// @description     Document workflow API: task assignment, status tracking, archival and BPMN diagrams

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token from Keycloak
package main

import "github.com/mautops/docflow-gin/cmd"

func main() {
	cmd.Execute()
}
