package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("CRMX_ADMIN_URL", "http://localhost:8080")
		out     = envOr("CRMX_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "crmxadmin",
		Short: "CLI de operaciones para el backend CRMX (vía /admin)",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env CRMX_ADMIN_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, OutFormat: out, HTTP: &http.Client{Timeout: 60 * time.Second}}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Verifica que el servicio responda",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL = baseURL
			cl.OutFormat = out
			status, body, err := cl.do("GET", "/readyz")
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	tenantsCmd := &cobra.Command{
		Use:   "tenants",
		Short: "Provisioning y teardown de tenants",
	}

	provisionCmd := &cobra.Command{
		Use:   "provision <tenant-id>",
		Short: "Crea el schema del tenant y corre las migraciones (idempotente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL = baseURL
			cl.OutFormat = out
			status, body, err := cl.do("POST", "/admin/tenants/"+args[0]+"/provision")
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("provision falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	deprovisionCmd := &cobra.Command{
		Use:   "deprovision <tenant-id>",
		Short: "Elimina el schema del tenant CON TODOS SUS DATOS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL = baseURL
			cl.OutFormat = out
			status, body, err := cl.do("DELETE", "/admin/tenants/"+args[0])
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("deprovision falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	dropConnsCmd := &cobra.Command{
		Use:   "drop-connections <tenant-id>",
		Short: "Cierra el pool de conexiones del tenant sin tocar sus datos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL = baseURL
			cl.OutFormat = out
			status, body, err := cl.do("DELETE", "/admin/tenants/"+args[0]+"/connections")
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("drop-connections falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Snapshot del estado de los pools por tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL = baseURL
			cl.OutFormat = out
			status, body, err := cl.do("GET", "/admin/pools")
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("pools falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	tenantsCmd.AddCommand(provisionCmd, deprovisionCmd, dropConnsCmd)
	root.AddCommand(pingCmd, tenantsCmd, poolsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
