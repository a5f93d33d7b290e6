/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"crypto/tls"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/tlsutil"
)

// CustomValidator is a struct that embeds the validator.Validate type
type CustomValidator struct {
	*validator.Validate
}

// NewCustomValidator creates a new instance of CustomValidator
func NewCustomValidator() (*CustomValidator, error) {
	v := validator.New()
	if err := v.RegisterValidation("certkey", ValidateCertAndKeyFiles); err != nil {
		return nil, fmt.Errorf("NewCustomValidator: error registering certkey validation: %v", err)
	}
	if err := v.RegisterValidation("cipherlist", ValidateCipherList); err != nil {
		return nil, fmt.Errorf("NewCustomValidator: error registering cipherlist validation: %v", err)
	}
	if err := v.RegisterValidation("tlsversions", ValidateTlsVersions); err != nil {
		return nil, fmt.Errorf("NewCustomValidator: error registering tlsversions validation: %v", err)
	}
	return &CustomValidator{v}, nil
}

func ValidateConfig(v *viper.Viper, cfgfile string) error {
	var config Config

	if v == nil {
		if err := viper.Unmarshal(&config); err != nil {
			return fmt.Errorf("ValidateConfig: Unmarshal error: %v", err)
		}
	} else {
		if err := v.Unmarshal(&config); err != nil {
			return fmt.Errorf("ValidateConfig: Unmarshal error: %v", err)
		}
	}

	var configsections = make(map[string]interface{}, 5)

	configsections["log"] = config.Log
	configsections["service"] = config.Service
	configsections["dnsengine"] = config.DnsEngine

	if err := ValidateBySection(&config, configsections, cfgfile); err != nil {
		return fmt.Errorf("Config \"%s\" is missing required attributes:\n%v", cfgfile, err)
	}
	return nil
}

func ValidateBySection(config *Config, configsections map[string]interface{}, cfgfile string) error {
	validate, err := NewCustomValidator()
	if err != nil {
		return fmt.Errorf("ValidateBySection: error creating custom validator: %v", err)
	}

	for section, data := range configsections {
		if Globals.Debug {
			log.Printf("ValidateBySection: validating section %s", section)
		}
		if err := validate.Struct(data); err != nil {
			return fmt.Errorf("section %s: %v", section, err)
		}
	}
	return nil
}

// ValidateCertAndKeyFiles checks that the configured certificate file
// and the key file next to it load as a usable key pair.
func ValidateCertAndKeyFiles(fl validator.FieldLevel) bool {
	certFile := fl.Field().String()
	keyFile := fl.Parent().FieldByName("KeyFile").String()

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		log.Printf("ValidateCertAndKeyFiles: error reading cert file: %v", err)
		return false
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		log.Printf("ValidateCertAndKeyFiles: error reading key file: %v", err)
		return false
	}

	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		log.Printf("ValidateCertAndKeyFiles: error loading certificate: %v", err)
		return false
	}
	return true
}

// ValidateCipherList probes a cipher list string against a throwaway
// TLS context before it is allowed anywhere near a listener.
func ValidateCipherList(fl validator.FieldLevel) bool {
	return tlsutil.ValidCipherlist(fl.Field().String())
}

// ValidateTlsVersions checks that every configured protocol name maps
// to a version this build supports.
func ValidateTlsVersions(fl validator.FieldLevel) bool {
	field := fl.Field()
	for i := 0; i < field.Len(); i++ {
		name := field.Index(i).String()
		ver := tlsutil.ProtocolNameToVersion(name)
		if ver == 0 || !tlsutil.ProtocolSupported(ver) {
			log.Printf("ValidateTlsVersions: unsupported TLS version %q", name)
			return false
		}
	}
	return true
}
