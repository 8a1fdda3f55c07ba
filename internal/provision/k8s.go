// Package provision stands up and tears down the Kubernetes workload
// that backs a DatabaseSql/DatabaseNoSql Connection: a Secret carrying
// the generated credentials, a single-replica Deployment running the
// database image, and a ClusterIP Service fronting it. It shells out to
// kubectl (no client-go dependency) and checks readiness with a real
// database probe instead of an HTTP health check.
package provision

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/unigate/gateway/pkg/models"
)

// DatabasePodConfig is the per-connection-type pod recipe: which image
// backs the connection's database engine and what port it listens on.
type DatabasePodConfig struct {
	Image string
	Port  int
}

var podConfigs = map[string]DatabasePodConfig{
	"postgresql": {Image: "postgres:16-alpine", Port: 5432},
	"mysql":      {Image: "mysql:8", Port: 3306},
	"mongodb":    {Image: "mongo:7", Port: 27017},
}

func podConfigFor(settings map[string]interface{}) (DatabasePodConfig, string) {
	engine, _ := settings["engine"].(string)
	if engine == "" {
		engine = "postgresql"
	}
	cfg, ok := podConfigs[engine]
	if !ok {
		cfg = podConfigs["postgresql"]
	}
	return cfg, engine
}

// DatabaseConnectionSecret is the generated credential bundle a
// provisioned database pod is seeded with, through the Kubernetes Secret
// in its manifest.
type DatabaseConnectionSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// K8sProvisioner implements contracts.Provisioner over kubectl.
type K8sProvisioner struct {
	namespace    string
	probeTimeout time.Duration
}

// New creates a K8sProvisioner. probeTimeout bounds WaitReady's total
// retry budget (config.ProvisionConfig.ProbeTimeout,
// DATABASE_CONNECTION_PROBE_TIMEOUT_SECS).
func New(namespace string, probeTimeout time.Duration) *K8sProvisioner {
	if namespace == "" {
		namespace = "gateway-connections"
	}
	return &K8sProvisioner{namespace: namespace, probeTimeout: probeTimeout}
}

// Provision generates credentials for conn, applies the Secret +
// Deployment + Service manifest, and records the resulting host/port in
// conn.Settings. It does not wait for the pod to become ready; callers
// needing that guarantee call WaitReady afterward.
func (p *K8sProvisioner) Provision(ctx context.Context, conn *models.Connection, def *models.ConnectionDefinition) error {
	if conn.Type != models.ConnectionTypeDatabaseSQL && conn.Type != models.ConnectionTypeDatabaseNoSQL {
		return nil
	}
	if _, err := exec.LookPath("kubectl"); err != nil {
		return fmt.Errorf("kubectl not found in PATH — required to provision database connections")
	}

	podCfg, engine := podConfigFor(conn.Settings)
	secret, err := generateSecret(conn, podCfg)
	if err != nil {
		return fmt.Errorf("generate connection secret: %w", err)
	}

	name := resourceName(conn.ID)
	manifest := buildManifest(name, p.namespace, podCfg.Image, podCfg.Port, secret)

	log.Info().Str("connection", conn.ID).Str("engine", engine).Str("deployment", name).Msg("provisioning database connection")

	cmd := exec.CommandContext(ctx, "kubectl", "apply", "-f", "-")
	cmd.Stdin = bytes.NewBufferString(manifest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kubectl apply failed: %s: %w", stderr.String(), err)
	}

	if conn.Settings == nil {
		conn.Settings = map[string]interface{}{}
	}
	conn.Settings["engine"] = engine
	conn.Settings["host"] = fmt.Sprintf("%s.%s.svc.cluster.local", name, p.namespace)
	conn.Settings["port"] = podCfg.Port
	conn.Settings["database"] = secret.Database
	conn.Settings["username"] = secret.Username

	return nil
}

// Deprovision deletes the Deployment, Service, and Secret for conn.
// Called on explicit connection deletion and on test-connection failure.
func (p *K8sProvisioner) Deprovision(ctx context.Context, conn *models.Connection) error {
	name := resourceName(conn.ID)
	for _, kind := range []string{"deployment", "service", "secret"} {
		cmd := exec.CommandContext(ctx, "kubectl", "delete", kind, name, "-n", p.namespace, "--ignore-not-found")
		if err := cmd.Run(); err != nil {
			log.Warn().Err(err).Str("kind", kind).Str("name", name).Msg("provision: cleanup failed")
		}
	}
	return nil
}

// WaitReady polls the pod's readiness under a bounded exponential
// backoff, so a slow-starting database image doesn't spend the whole
// probe budget on a tight poll loop, and, for SQL connections, follows
// up with one real TCP-and-auth probe. probeTimeout bounds the whole wait.
func (p *K8sProvisioner) WaitReady(ctx context.Context, conn *models.Connection) error {
	if conn.Type != models.ConnectionTypeDatabaseSQL && conn.Type != models.ConnectionTypeDatabaseNoSQL {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	name := resourceName(conn.ID)

	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(250*time.Millisecond),
			backoff.WithMaxInterval(2*time.Second),
		), 20), ctx)

	if err := backoff.Retry(func() error {
		return p.checkPodRunning(ctx, name)
	}, bo); err != nil {
		return fmt.Errorf("connection pod did not become ready: %w", err)
	}

	if conn.Type != models.ConnectionTypeDatabaseSQL {
		return nil
	}

	return p.probePostgres(ctx, conn)
}

func (p *K8sProvisioner) checkPodRunning(ctx context.Context, deployName string) error {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "kubectl", "get", "pods",
		"-n", p.namespace, "-l", "app="+deployName, "-o", "jsonpath={.items[0].status.phase}")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return err
	}
	if strings.TrimSpace(stdout.String()) != "Running" {
		return fmt.Errorf("pod not running yet")
	}
	return nil
}

// probePostgres opens a real connection to the provisioned database
// using the generated credentials to confirm the engine, not just the
// pod, is ready to accept traffic.
func (p *K8sProvisioner) probePostgres(ctx context.Context, conn *models.Connection) error {
	host, _ := conn.Settings["host"].(string)
	database, _ := conn.Settings["database"].(string)
	username, _ := conn.Settings["username"].(string)
	password, _ := conn.Settings["password"].(string)
	port, _ := conn.Settings["port"].(int)
	engine, _ := conn.Settings["engine"].(string)
	if host == "" || (engine != "" && engine != "postgresql") {
		return nil // non-postgres engines skip the TCP/auth probe
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", username, password, host, port, database)
	pgxConn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("postgres probe: %w", err)
	}
	defer pgxConn.Close(ctx)
	return pgxConn.Ping(ctx)
}

func resourceName(connectionID string) string {
	return "gw-conn-" + strings.ToLower(connectionID)
}

func generateSecret(conn *models.Connection, podCfg DatabasePodConfig) (*DatabaseConnectionSecret, error) {
	password, err := randomToken(24)
	if err != nil {
		return nil, err
	}
	return &DatabaseConnectionSecret{
		Username: "gw_" + strings.ToLower(conn.ID),
		Password: password,
		Database: "gw_" + strings.ToLower(conn.ID),
		Port:     podCfg.Port,
	}, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func buildManifest(name, namespace, image string, port int, secret *DatabaseConnectionSecret) string {
	return fmt.Sprintf(`---
apiVersion: v1
kind: Secret
metadata:
  name: %s
  namespace: %s
type: Opaque
stringData:
  username: %q
  password: %q
  database: %q
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: %s
  namespace: %s
  labels:
    app: %s
    gateway.dev/component: connection
spec:
  replicas: 1
  selector:
    matchLabels:
      app: %s
  template:
    metadata:
      labels:
        app: %s
        gateway.dev/component: connection
    spec:
      containers:
      - name: database
        image: %s
        ports:
        - containerPort: %d
        envFrom:
        - secretRef:
            name: %s
        resources:
          requests:
            memory: "128Mi"
            cpu: "100m"
          limits:
            memory: "512Mi"
            cpu: "500m"
---
apiVersion: v1
kind: Service
metadata:
  name: %s
  namespace: %s
  labels:
    app: %s
spec:
  selector:
    app: %s
  ports:
  - port: %d
    targetPort: %d
    protocol: TCP
  type: ClusterIP
`,
		name, namespace, secret.Username, secret.Password, secret.Database,
		name, namespace, name,
		name,
		name,
		image, port, name,
		name, namespace, name, name, port, port,
	)
}
