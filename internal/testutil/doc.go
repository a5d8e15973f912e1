// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, MustUnsetenv),
// shell-script stand-ins for the checker binary (WriteExecutable) and a
// manually advanced clock (FakeClock).
package testutil
