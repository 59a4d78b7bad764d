package banner

import (
	"fmt"

	"noticeboard/pkg/config"
)

const banner = `
███╗   ██╗ ██████╗ ████████╗██╗ ██████╗███████╗██████╗  ██████╗  █████╗ ██████╗ ██████╗
████╗  ██║██╔═══██╗╚══██╔══╝██║██╔════╝██╔════╝██╔══██╗██╔═══██╗██╔══██╗██╔══██╗██╔══██╗
██╔██╗ ██║██║   ██║   ██║   ██║██║     █████╗  ██████╔╝██║   ██║███████║██████╔╝██║  ██║
██║╚██╗██║██║   ██║   ██║   ██║██║     ██╔══╝  ██╔══██╗██║   ██║██╔══██║██╔══██╗██║  ██║
██║ ╚████║╚██████╔╝   ██║   ██║╚██████╗███████╗██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝
╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚═╝ ╚═════╝╚══════╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`

// Print writes the startup banner plus a short readiness checklist.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", cfg.Addr())
	fmt.Printf("DB Path:  %s\n", cfg.DBPath())
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/conversations/contact' -d '{\"seller\":\"u2\",\"listing\":\"p42\",\"text\":\"still available?\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/conversations'")

	fmt.Println("\n== Production? ================================================")
	printKeys("Backend", len(cfg.Security.APIKeys.Backend), "required for backend services")
	printKeys("Frontend", len(cfg.Security.APIKeys.Frontend), "required for client access")
	printKeys("Admin", len(cfg.Security.APIKeys.Admin), "required for admin tooling")

	if cfg.Retention.Enabled {
		info := ""
		if cfg.Retention.Cron != "" {
			info = " (cron=" + cfg.Retention.Cron + ")"
		} else if cfg.Retention.Period != "" {
			info = " (period=" + cfg.Retention.Period + ")"
		}
		fmt.Printf("- Retention: enabled%s\n", info)
	} else {
		fmt.Println("- Retention: disabled (expired conversations purge lazily on read)")
	}

	fmt.Println("\n== Logs: ======================================================")
}

func printKeys(kind string, n int, why string) {
	if n > 0 {
		fmt.Printf("- %s API keys: OK (%d)\n", kind, n)
		return
	}
	fmt.Printf("- %s API keys: MISSING (%s)\n", kind, why)
}
