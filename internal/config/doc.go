// Package config loads toolgate's configuration.
//
// Configuration is read from config.yaml in a single directory, by default
// ~/.config/toolgate, or the directory given with --config-path. A missing
// file yields the defaults; each command then validates only the sections it
// needs (ValidateGateway for serve, ValidateClient for the calling commands,
// ValidateOAuth for both).
//
// # Secrets
//
// Client secrets are either inline, where ${VAR} references are expanded from
// the environment, or read from clientSecretFile. After loading, the secret
// lives only in ProviderConfig.Secret, which never marshals its value.
// SecretWatcher follows secret files on disk and rotates them into the token
// provider without a restart.
//
// # Tools
//
// A tool's input schema is given inline under inputSchema or in a separate
// YAML or JSON file named by schemaFile, resolved relative to the
// configuration directory. When no targets are configured the built-in
// aws_cost_estimation tool is registered, with its runtime located by
// TOOLGATE_RUNTIME_ARN and TOOLGATE_RUNTIME_ENDPOINT.
//
// # Example
//
//	gateway:
//	  listenAddr: ":8080"
//	  authorizer:
//	    discoveryUrl: https://cognito-idp.eu-west-1.amazonaws.com/pool/.well-known/openid-configuration
//	  targets:
//	    - name: AWSCostEstimationLambdaTarget
//	      runtime:
//	        arn: arn:aws:bedrock-agentcore:eu-west-1:123456789012:runtime/cost
//	        endpoint: https://bedrock-agentcore.eu-west-1.amazonaws.com
//	      tools:
//	        - name: aws_cost_estimation
//	          schemaFile: tools/aws_cost_estimation.yaml
//	oauth:
//	  providers:
//	    - name: agentcore-identity-for-gateway
//	      tokenUrl: https://auth.example.com/oauth2/token
//	      clientId: ${TOOLGATE_CLIENT_ID}
//	      clientSecretFile: /run/secrets/client_secret
//	      scopePrefix: ResourceServer
//	client:
//	  gatewayUrl: http://localhost:8080/mcp
//	  provider: agentcore-identity-for-gateway
//	  scopes: [invoke]
package config
