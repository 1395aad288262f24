// Package autoload registers every built-in channel factory.
package autoload

import (
	_ "labagent/pkg/channels/telegram"
	_ "labagent/pkg/channels/web"
)
