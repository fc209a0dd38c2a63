// Package config loads and watches the server configuration file (config.yaml).
//
// Top-level types:
//   - Config{Server} — full config tree parsed from YAML
//   - ServerConfig — http_port, auth, runs.ttl, broadcast_interval,
//     simulate_interval, tracker, traces [], alerts
//   - TrackerConfig — default simulation params (baseline, qubits, timesteps,
//     decoherence_chance, replacements, seed) and limits (max_qubits,
//     max_timesteps), inlined from package tracker
//   - TraceSource — id, type (prometheus|file), endpoint/path, metric, auth, tls
//   - AlertsConfig — rules and webhook targets
//
// Load(path) reads the YAML file, applies defaults (port 8080, 30m run TTL,
// 5s broadcast, 15s live simulation, tracker defaults), then validates.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's directory and calls
// onChange with the newly parsed Config whenever the file is written or
// recreated. Invalid reloads are logged and dropped.
package config
