// Package organizer finalizes classified jobs. The resolver matches files
// appearing in the completed root against pending_completion jobs and sweeps
// out jobs whose source vanished from both roots. The mover places matched
// files into the library at their suggested paths, enforcing the conflict
// policy: collisions overwrite only inside the catch-all folder, everywhere
// else the job stays pending until an operator intervenes.
package organizer
