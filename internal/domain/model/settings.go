package model

// Keys of the persisted settings that configure the integrity service.
const (
	SettingIntegrityAPIURL             = "integrity_api_url"
	SettingIntegrityAPIKey             = "integrity_api_key"
	SettingIntegrityIntegrationName    = "integrity_integration_name"
	SettingIntegrityIntegrationVersion = "integrity_integration_version"
)

// IntegritySettingKeys lists every key the integrity bundle needs.
var IntegritySettingKeys = []string{
	SettingIntegrityAPIURL,
	SettingIntegrityAPIKey,
	SettingIntegrityIntegrationName,
	SettingIntegrityIntegrationVersion,
}

type IntegritySettings struct {
	APIURL             string
	APIKey             string
	IntegrationName    string
	IntegrationVersion string
}
